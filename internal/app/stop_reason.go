package app

// StopReason is logged once when the app begins shutting down.
type StopReason string

const (
	StopUnknown          StopReason = "unknown"
	StopSignal           StopReason = "signal"
	StopFatalError       StopReason = "fatal_error"
	StopWorkersCollapsed StopReason = "workers_collapsed"
)
