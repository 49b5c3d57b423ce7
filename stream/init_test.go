package stream

import "github.com/streamingfast/logging"

var zlog, _ = logging.PackageLogger("stream", "github.com/streamingfast/substreams-cursor-source/stream")

func init() {
	logging.InstantiateLoggers()
}
