package domain

// SubmissionState is a state of the per-submission orchestration.
type SubmissionState string

const (
	StateValidating        SubmissionState = "VALIDATING"
	StateCustomerResolving SubmissionState = "CUSTOMER_RESOLVING"
	StateChargeSubmitting  SubmissionState = "CHARGE_SUBMITTING"
	StateSucceeded         SubmissionState = "SUCCEEDED"
	StateFailed            SubmissionState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s SubmissionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Submission is the result of one pass through the orchestrator.
type Submission struct {
	State             SubmissionState
	Transitions       []SubmissionState
	ExternalReference string
	Instrument        Instrument
	Charge            *ChargeResult
}

// Enter moves the submission into the given state and records the transition.
func (s *Submission) Enter(state SubmissionState) {
	s.State = state
	s.Transitions = append(s.Transitions, state)
}
