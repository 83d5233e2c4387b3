package relay

// MetricsRecorder receives rendezvous lifecycle events for observability.
// It is satisfied by *internal/platform/metrics.Metrics; a nil recorder on
// Handler is valid and every call below becomes a no-op.
type MetricsRecorder interface {
	IncSendersConnected()
	IncReceiversJoined()
	AddBytesRelayed(n int64)
}
