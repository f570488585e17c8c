package application

import "time"

// Recorder receives operational counts from the services. The metrics
// package provides the Prometheus implementation.
type Recorder interface {
	SessionsCreated(mode string, count int)
	ScheduleRejected(operation, kind string)
	AutomationOutcome(trigger string, outcome Outcome, count int)
	AutomationRun(duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) SessionsCreated(string, int) {}
func (noopRecorder) ScheduleRejected(string, string) {}
func (noopRecorder) AutomationOutcome(string, Outcome, int) {}
func (noopRecorder) AutomationRun(time.Duration, error) {}

func defaultRecorder(r Recorder) Recorder {
	if r == nil {
		return noopRecorder{}
	}
	return r
}
