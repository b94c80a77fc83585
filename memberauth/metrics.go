package memberauth

// Metrics receives counters from the session core. The zero configuration
// uses a no-op implementation.
type Metrics interface {
	RefreshCompleted(outcome string)
	GatewayResponse(status int, retried bool)
	GuardDecided(state GuardState)
}

// Refresh outcomes reported to Metrics.
const (
	RefreshOutcomeSuccess  = "success"
	RefreshOutcomeFailure  = "failure"
	RefreshOutcomeCanceled = "canceled"
)

type noopMetrics struct{}

func (noopMetrics) RefreshCompleted(string) {}
func (noopMetrics) GatewayResponse(int, bool) {}
func (noopMetrics) GuardDecided(GuardState) {}
