package app

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classquiz-service/internal/domain"
)

// AttemptView is what an approved student sees when the attempt opens:
// the quiz without answer keys plus the effective remaining time.
type AttemptView struct {
	Quiz      domain.QuizView `json:"quiz"`
	Remaining time.Duration   `json:"remaining"`
}

// OpenAttempt verifies the quiz password and the student's eligibility and
// returns the attempt view. It mutates nothing: a client crash after this
// call leaves the registration unattempted, so the attempt can be reopened
// until a result is durably recorded.
func (s *QuizService) OpenAttempt(ctx context.Context, studentID, quizID, password string) (AttemptView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(quiz.PasswordHash), []byte(password)); err != nil {
		return AttemptView{}, domain.ErrInvalidPassword
	}
	return s.ResumeAttempt(ctx, studentID, quizID)
}

// ResumeAttempt re-runs the eligibility gate without the password check.
// It backs the one-time attempt code flow, where the password was already
// verified when the code was issued.
func (s *QuizService) ResumeAttempt(ctx context.Context, studentID, quizID string) (AttemptView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	reg, err := s.registrations.GetRegistration(ctx, studentID, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	if reg.Status != domain.ApprovalAccepted {
		return AttemptView{}, domain.ErrRegistrationNotApproved
	}
	if reg.Attempted {
		return AttemptView{}, domain.ErrDuplicateSubmission
	}
	now := s.now()
	if now.Before(quiz.AttemptStart) || now.After(quiz.AttemptEnd) {
		return AttemptView{}, domain.ErrAttemptWindowClosed
	}
	return AttemptView{
		Quiz:      quiz.View(),
		Remaining: remainingTime(now, quiz),
	}, nil
}

// GetAttemptView returns the quiz metadata and questions for rendering.
// Answer keys are always stripped; the call is repeatable and has no
// side effects.
func (s *QuizService) GetAttemptView(ctx context.Context, quizID string) (AttemptView, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return AttemptView{}, err
	}
	return AttemptView{
		Quiz:      quiz.View(),
		Remaining: remainingTime(s.now(), quiz),
	}, nil
}

// SubmitAttempt scores the submitted answers and durably records the result.
// answers maps question position to the selected option index; missing
// positions score as wrong. The store records the result and flips the
// registration's attempted flag atomically, so calling this twice with
// identical arguments yields exactly one result and a second
// domain.ErrDuplicateSubmission, even when the calls race.
func (s *QuizService) SubmitAttempt(ctx context.Context, studentID, quizID string, answers map[int]int) (domain.AttemptResult, int, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptResult{}, 0, err
	}
	reg, err := s.registrations.GetRegistration(ctx, studentID, quizID)
	if err != nil {
		return domain.AttemptResult{}, 0, err
	}
	if reg.Status != domain.ApprovalAccepted {
		return domain.AttemptResult{}, 0, domain.ErrRegistrationNotApproved
	}
	scored, score := scoreAnswers(quiz.Questions, answers)
	result := domain.AttemptResult{
		StudentID:   studentID,
		QuizID:      quizID,
		Answers:     scored,
		Score:       score,
		SubmittedAt: s.now(),
	}
	if err := s.results.RecordSubmission(ctx, result); err != nil {
		return domain.AttemptResult{}, 0, err
	}
	return result, len(quiz.Questions), nil
}

// StudentResult returns the student's own result once the teacher has
// released results for the quiz.
func (s *QuizService) StudentResult(ctx context.Context, studentID, quizID string) (domain.AttemptResult, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if !quiz.ResultsReleased {
		return domain.AttemptResult{}, domain.ErrResultsNotReleased
	}
	return s.results.GetResult(ctx, studentID, quizID)
}
