package app

import (
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

func windowedQuiz(base time.Time) domain.Quiz {
	return domain.Quiz{
		ID:              "quiz-1",
		DurationMinutes: 30,
		RegStart:        base,
		RegEnd:          base.Add(time.Hour),
		AttemptStart:    base.Add(time.Hour),
		AttemptEnd:      base.Add(3 * time.Hour),
	}
}

func TestEvaluateUnregistered(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	quiz := windowedQuiz(base)

	before := Evaluate(base.Add(-time.Minute), quiz, nil)
	if before.CanRegister {
		t.Fatalf("registration should be closed before the window")
	}
	during := Evaluate(base.Add(30*time.Minute), quiz, nil)
	if !during.CanRegister || during.CanAttempt {
		t.Fatalf("expected register-only eligibility, got %+v", during)
	}
	if during.RegistrationStatus != domain.StatusNotRegistered {
		t.Fatalf("expected not_registered, got %s", during.RegistrationStatus)
	}
	after := Evaluate(base.Add(2*time.Hour), quiz, nil)
	if after.CanRegister {
		t.Fatalf("registration should be closed after the window")
	}
}

func TestEvaluateRegistrationStates(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	quiz := windowedQuiz(base)
	inWindow := base.Add(90 * time.Minute)

	pending := Evaluate(inWindow, quiz, &domain.Registration{Status: domain.ApprovalPending})
	if pending.CanAttempt || pending.CanRegister {
		t.Fatalf("pending registration must not attempt or re-register: %+v", pending)
	}

	rejected := Evaluate(inWindow, quiz, &domain.Registration{Status: domain.ApprovalRejected})
	if rejected.CanAttempt {
		t.Fatalf("rejected registration must not attempt")
	}

	accepted := Evaluate(inWindow, quiz, &domain.Registration{Status: domain.ApprovalAccepted})
	if !accepted.CanAttempt {
		t.Fatalf("accepted registration inside the window must attempt")
	}

	attempted := Evaluate(inWindow, quiz, &domain.Registration{Status: domain.ApprovalAccepted, Attempted: true})
	if attempted.CanAttempt {
		t.Fatalf("attempted registration must not attempt again")
	}
	if !attempted.Attempted {
		t.Fatalf("attempted flag should surface")
	}
}

func TestEvaluateAttemptWindowEdges(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	quiz := windowedQuiz(base)
	reg := &domain.Registration{Status: domain.ApprovalAccepted}

	if e := Evaluate(quiz.AttemptStart, quiz, reg); !e.CanAttempt {
		t.Fatalf("window start is inclusive")
	}
	if e := Evaluate(quiz.AttemptEnd, quiz, reg); !e.CanAttempt {
		t.Fatalf("window end is inclusive")
	}
	if e := Evaluate(quiz.AttemptEnd.Add(time.Second), quiz, reg); e.CanAttempt {
		t.Fatalf("window must close after AttemptEnd")
	}
}

func TestRemainingTimeClamps(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	quiz := windowedQuiz(base)

	// Deep inside the window the full duration is available.
	if got := remainingTime(quiz.AttemptStart, quiz); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", got)
	}
	// Ten minutes before close the window caps the countdown.
	if got := remainingTime(quiz.AttemptEnd.Add(-10*time.Minute), quiz); got != 10*time.Minute {
		t.Fatalf("expected 10m, got %v", got)
	}
	// Past the window nothing remains.
	if got := remainingTime(quiz.AttemptEnd.Add(time.Minute), quiz); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
