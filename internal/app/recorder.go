package app

// Recorder receives the counters the services emit. Implemented by
// metrics.Metrics.
type Recorder interface {
	NotificationSent(messageType, status string)
	StatusTransition(messageType, status string)
	BatchDispatched()
	LicenceFlagged(outcome string)
	ReconciliationRun(err error)
}
