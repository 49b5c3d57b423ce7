package writer

import "github.com/streamingfast/logging"

var zlog, _ = logging.PackageLogger("writer", "github.com/streamingfast/substreams-cursor-source/bundler/writer")

func init() {
	logging.InstantiateLoggers()
}
