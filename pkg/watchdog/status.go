package watchdog

import "time"

// Status tracks the check history of a watchdog
type Status struct {
	// ConsecutiveFailures counts failed remediations since the last success
	ConsecutiveFailures int

	// ConsecutiveSuccesses counts healthy or fixed checks since the last failure
	ConsecutiveSuccesses int

	// LastCheck is when the last non-skipped check started
	LastCheck time.Time

	// LastOutcome is the outcome of that check
	LastOutcome Outcome

	// LastError is the error of that check, if any
	LastError string

	// Fixes counts successful remediations
	Fixes int

	// StartedAt is when this watchdog was created
	StartedAt time.Time
}

// NewStatus creates a new Status
func NewStatus() *Status {
	return &Status{StartedAt: time.Now()}
}

// Update records the outcome of a check
func (s *Status) Update(outcome Outcome, err error, at time.Time) {
	s.LastCheck = at
	s.LastOutcome = outcome
	s.LastError = ""
	if err != nil {
		s.LastError = err.Error()
	}

	switch outcome {
	case OutcomeHealthy, OutcomeFixed:
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
		if outcome == OutcomeFixed {
			s.Fixes++
		}
	case OutcomeFailed:
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
	}
}
