package pq

import "github.com/streamingfast/logging"

var zlog, tracer = logging.PackageLogger("pq", "github.com/streamingfast/substreams-cursor-source/encoder/pq")
