package stream

import "github.com/streamingfast/dmetrics"

func RegisterMetrics() {
	metrics.Register()
}

var metrics = dmetrics.NewSet()

var SubstreamsErrorCount = metrics.NewCounter("substreams_source_error", "The error count we encountered when interacting with Substreams for which the consumer became faulted")
var ProgressMessageCount = metrics.NewCounterVec("substreams_source_progress_message", []string{"module"}, "The number of progress message received")
var BlockCount = metrics.NewCounter("substreams_source_block_count", "The number of blocks received")
var UndoCount = metrics.NewCounter("substreams_source_undo_count", "The number of undo signals received")
var HeadBlockNumber = metrics.NewGauge("substreams_source_head_block_number", "The block number of the last record emitted")
