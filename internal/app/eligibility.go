package app

import (
	"time"

	"classquiz-service/internal/domain"
)

// Eligibility classifies what a student may currently do with a quiz.
type Eligibility struct {
	CanRegister        bool          `json:"canRegister"`
	RegistrationStatus string        `json:"registrationStatus"`
	CanAttempt         bool          `json:"canAttempt"`
	Attempted          bool          `json:"attempted"`
	Remaining          time.Duration `json:"remaining"`
}

// Evaluate computes eligibility for a (student, quiz) pair at time now.
// It is pure: same inputs always produce the same output, and nothing is
// mutated. reg is nil when the student never registered.
func Evaluate(now time.Time, quiz domain.Quiz, reg *domain.Registration) Eligibility {
	e := Eligibility{
		RegistrationStatus: domain.StatusNotRegistered,
		Remaining:          remainingTime(now, quiz),
	}
	if reg == nil {
		e.CanRegister = !now.Before(quiz.RegStart) && !now.After(quiz.RegEnd)
		return e
	}
	e.RegistrationStatus = string(reg.Status)
	e.Attempted = reg.Attempted
	e.CanAttempt = reg.Status == domain.ApprovalAccepted &&
		!reg.Attempted &&
		!now.Before(quiz.AttemptStart) &&
		!now.After(quiz.AttemptEnd)
	return e
}

// remainingTime is min(duration, attemptEnd-now) clamped to zero.
func remainingTime(now time.Time, quiz domain.Quiz) time.Duration {
	remaining := quiz.Duration()
	if untilClose := quiz.AttemptEnd.Sub(now); untilClose < remaining {
		remaining = untilClose
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
