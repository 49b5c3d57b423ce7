package bundler

import "github.com/streamingfast/logging"

var zlog, _ = logging.PackageLogger("bundler", "github.com/streamingfast/substreams-cursor-source/bundler")

func init() {
	logging.InstantiateLoggers()
}
