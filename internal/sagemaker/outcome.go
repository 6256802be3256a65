package sagemaker

// Status tags how an Outcome was produced.
type Status string

const (
	// StatusLive means the endpoint answered and the value is its prediction.
	StatusLive Status = "live"
	// StatusDegraded means the call failed and the value is the demo payload.
	StatusDegraded Status = "degraded"
	// StatusFailed means the call failed and there is no value.
	StatusFailed Status = "failed"
)

// Outcome is the tagged result of a typed inference call. Reason is set for
// degraded and failed outcomes.
type Outcome[T any] struct {
	Target Target
	Status Status
	Value  T
	Reason error
}

// Live reports whether the value came from the endpoint.
func (o Outcome[T]) Live() bool { return o.Status == StatusLive }

// Usable reports whether Value holds data, live or demo.
func (o Outcome[T]) Usable() bool { return o.Status == StatusLive || o.Status == StatusDegraded }

// ReasonText returns the failure reason, or "" for live outcomes.
func (o Outcome[T]) ReasonText() string {
	if o.Reason == nil {
		return ""
	}
	return o.Reason.Error()
}
