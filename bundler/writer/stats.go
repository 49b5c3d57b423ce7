package writer

import (
	"sync"
	"time"

	"github.com/streamingfast/dmetrics"
	"go.uber.org/zap/zapcore"
)

// stats is updated from the record loop for collection times and from the
// upload workers for upload times.
type stats struct {
	mu sync.Mutex

	creationStart time.Time

	lastUploadTime   time.Duration
	uploadingTime    *dmetrics.AvgDurationCounter
	lastCreationTime time.Duration
	creationTime     *dmetrics.AvgDurationCounter
}

func newStats() *stats {
	return &stats{
		uploadingTime: dmetrics.NewAvgDurationCounter(30*time.Second, time.Second, "upload time"),
		creationTime:  dmetrics.NewAvgDurationCounter(30*time.Second, time.Second, "creation time"),
	}
}

func (s *stats) startCollecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creationStart = time.Now()
}

func (s *stats) stopCollecting() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dur := time.Since(s.creationStart)
	s.creationTime.AddDuration(dur)
	s.lastCreationTime = dur
}

func (s *stats) addUpload(dur time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploadingTime.AddDuration(dur)
	s.lastUploadTime = dur
}

func (s *stats) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoder.AddString("upload_time", s.uploadingTime.String())
	encoder.AddDuration("last_upload_time", s.lastUploadTime)
	encoder.AddString("creation_time", s.creationTime.String())
	encoder.AddDuration("last_creation_time", s.lastCreationTime)
	return nil
}
