package bundler

import (
	"time"

	"github.com/streamingfast/bstream"
	"github.com/streamingfast/dmetrics"
	"go.uber.org/zap"
)

type boundaryStats struct {
	creationStart time.Time
	boundary      *bstream.Range
	records       uint64

	boundaryProcessTime *dmetrics.AvgDurationCounter
	processingDataTime  *dmetrics.AvgDurationCounter
	totalRecords        uint64
	totalBoundaries     uint64
}

func newStats() *boundaryStats {
	return &boundaryStats{
		boundaryProcessTime: dmetrics.NewAvgDurationCounter(30*time.Second, time.Second, "boundary process time"),
		processingDataTime:  dmetrics.NewAvgDurationCounter(30*time.Second, time.Second, "processing data time"),
	}
}

func (s *boundaryStats) startBoundary(b *bstream.Range) {
	s.creationStart = time.Now()
	s.boundary = b
	s.records = 0
}

func (s *boundaryStats) addRecord(elapsed time.Duration) {
	s.records++
	s.totalRecords++
	s.processingDataTime.AddDuration(elapsed)
}

func (s *boundaryStats) endBoundary() {
	s.boundaryProcessTime.AddDuration(time.Since(s.creationStart))
	s.totalBoundaries++
}

func (s *boundaryStats) Log() []zap.Field {
	return []zap.Field{
		zap.Stringer("boundary", s.boundary),
		zap.Uint64("boundary_records", s.records),
		zap.Uint64("total_records", s.totalRecords),
		zap.Uint64("total_boundaries", s.totalBoundaries),
		zap.Stringer("boundary_process_duration", s.boundaryProcessTime),
		zap.Stringer("data_process_duration", s.processingDataTime),
	}
}
