package migration

import "time"

// Recorder receives job and entry outcomes for metrics.
type Recorder interface {
	JobAccepted()
	JobStarted()
	JobFinished(status, reason string, elapsed time.Duration)
	EntryProcessed(kind string, converted bool)
}

type nopRecorder struct{}

func (nopRecorder) JobAccepted()                              {}
func (nopRecorder) JobStarted()                               {}
func (nopRecorder) JobFinished(string, string, time.Duration) {}
func (nopRecorder) EntryProcessed(string, bool)               {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
