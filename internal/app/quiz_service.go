package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"classquiz-service/internal/domain"
)

// QuizRepository stores quiz definitions.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, course, section string) ([]domain.Quiz, error)
	ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error)
	ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error
	SetResultsReleased(ctx context.Context, quizID string, released bool) error
}

// RegistrationRepository stores student-quiz registrations. CreateRegistration
// must fail with domain.ErrAlreadyRegistered when the (student, quiz) pair
// already exists; the constraint lives in the store, not in a prior read.
type RegistrationRepository interface {
	CreateRegistration(ctx context.Context, reg domain.Registration) error
	GetRegistration(ctx context.Context, studentID, quizID string) (domain.Registration, error)
	ListRegistrations(ctx context.Context, quizID string, status domain.ApprovalStatus) ([]domain.Registration, error)
	SetApproval(ctx context.Context, studentID, quizID string, status domain.ApprovalStatus) error
	HasRegistrations(ctx context.Context, quizID string) (bool, error)
}

// ResultRepository stores attempt results. RecordSubmission is the critical
// path: it must insert the result and flip the registration's attempted flag
// as one atomic unit, returning domain.ErrDuplicateSubmission when either
// the result already exists or the flag was already set.
type ResultRepository interface {
	RecordSubmission(ctx context.Context, result domain.AttemptResult) error
	GetResult(ctx context.Context, studentID, quizID string) (domain.AttemptResult, error)
	ListResults(ctx context.Context, quizID string) ([]domain.AttemptResult, error)
}

// QuizService contains the quiz lifecycle use cases: listing with
// eligibility, registration and approval, and the attempt session.
type QuizService struct {
	quizzes       QuizRepository
	registrations RegistrationRepository
	results       ResultRepository
	now           func() time.Time
}

func NewQuizService(quizzes QuizRepository, registrations RegistrationRepository, results ResultRepository) *QuizService {
	return NewQuizServiceWithClock(quizzes, registrations, results, time.Now)
}

// NewQuizServiceWithClock allows deterministic timestamps in tests.
func NewQuizServiceWithClock(quizzes QuizRepository, registrations RegistrationRepository, results ResultRepository, now func() time.Time) *QuizService {
	return &QuizService{
		quizzes:       quizzes,
		registrations: registrations,
		results:       results,
		now:           now,
	}
}

// QuestionInput is a question definition as supplied by the teacher.
type QuestionInput struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// CreateQuizInput carries everything needed to create a quiz.
type CreateQuizInput struct {
	TeacherID       string          `json:"teacherId"`
	Title           string          `json:"title"`
	Course          string          `json:"course"`
	Section         string          `json:"section"`
	Password        string          `json:"password"`
	DurationMinutes int             `json:"durationMinutes"`
	RegStart        time.Time       `json:"regStart"`
	RegEnd          time.Time       `json:"regEnd"`
	AttemptStart    time.Time       `json:"attemptStart"`
	AttemptEnd      time.Time       `json:"attemptEnd"`
	Questions       []QuestionInput `json:"questions"`
}

// CreateQuiz validates the definition, hashes the access password and
// persists the quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, input CreateQuizInput) (domain.Quiz, error) {
	if input.Password == "" {
		return domain.Quiz{}, domain.ValidationError{Field: "password", Reason: "required"}
	}
	quiz := domain.Quiz{
		ID:              uuid.NewString(),
		TeacherID:       input.TeacherID,
		Title:           input.Title,
		Course:          input.Course,
		Section:         input.Section,
		DurationMinutes: input.DurationMinutes,
		RegStart:        input.RegStart,
		RegEnd:          input.RegEnd,
		AttemptStart:    input.AttemptStart,
		AttemptEnd:      input.AttemptEnd,
		Questions:       buildQuestions(input.Questions),
	}
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("hash password: %w", err)
	}
	quiz.PasswordHash = string(hash)
	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// TeacherQuizzes lists all quizzes owned by a teacher.
func (s *QuizService) TeacherQuizzes(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	return s.quizzes.ListQuizzesByTeacher(ctx, teacherID)
}

// ReplaceQuestions swaps the quiz's question set. Once any registration
// exists the questions are frozen and the call fails with ErrQuizLocked.
func (s *QuizService) ReplaceQuestions(ctx context.Context, teacherID, quizID string, inputs []QuestionInput) (domain.Quiz, error) {
	quiz, err := s.ownedQuiz(ctx, teacherID, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	locked, err := s.registrations.HasRegistrations(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if locked {
		return domain.Quiz{}, domain.ErrQuizLocked
	}
	quiz.Questions = buildQuestions(inputs)
	if err := quiz.Validate(); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.ReplaceQuestions(ctx, quizID, quiz.Questions); err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// ReleaseResults toggles whether students can read their own results.
func (s *QuizService) ReleaseResults(ctx context.Context, teacherID, quizID string, released bool) error {
	if _, err := s.ownedQuiz(ctx, teacherID, quizID); err != nil {
		return err
	}
	return s.quizzes.SetResultsReleased(ctx, quizID, released)
}

// QuizResults returns every recorded attempt result for a teacher's quiz.
func (s *QuizService) QuizResults(ctx context.Context, teacherID, quizID string) ([]domain.AttemptResult, error) {
	if _, err := s.ownedQuiz(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	return s.results.ListResults(ctx, quizID)
}

// QuizListing is one row of the student's quiz list: quiz metadata plus the
// student's current eligibility. Questions are never included here.
type QuizListing struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Course          string      `json:"course"`
	Section         string      `json:"section"`
	DurationMinutes int         `json:"durationMinutes"`
	RegStart        time.Time   `json:"regStart"`
	RegEnd          time.Time   `json:"regEnd"`
	AttemptStart    time.Time   `json:"attemptStart"`
	AttemptEnd      time.Time   `json:"attemptEnd"`
	ResultsReleased bool        `json:"resultsReleased"`
	Eligibility     Eligibility `json:"eligibility"`
}

// ListQuizzes returns the quizzes for a course/section annotated with the
// student's eligibility. Eligibility is recomputed on every call.
func (s *QuizService) ListQuizzes(ctx context.Context, studentID, course, section string) ([]QuizListing, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx, course, section)
	if err != nil {
		return nil, err
	}
	now := s.now()
	listings := make([]QuizListing, 0, len(quizzes))
	for _, quiz := range quizzes {
		var reg *domain.Registration
		r, err := s.registrations.GetRegistration(ctx, studentID, quiz.ID)
		switch {
		case err == nil:
			reg = &r
		case errors.Is(err, domain.ErrRegistrationNotFound):
		default:
			return nil, err
		}
		listings = append(listings, QuizListing{
			ID:              quiz.ID,
			Title:           quiz.Title,
			Course:          quiz.Course,
			Section:         quiz.Section,
			DurationMinutes: quiz.DurationMinutes,
			RegStart:        quiz.RegStart,
			RegEnd:          quiz.RegEnd,
			AttemptStart:    quiz.AttemptStart,
			AttemptEnd:      quiz.AttemptEnd,
			ResultsReleased: quiz.ResultsReleased,
			Eligibility:     Evaluate(now, quiz, reg),
		})
	}
	return listings, nil
}

// Register creates a pending registration for the student. Only allowed
// inside the quiz's registration window.
func (s *QuizService) Register(ctx context.Context, studentID, quizID string) (domain.Registration, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Registration{}, err
	}
	now := s.now()
	if now.Before(quiz.RegStart) || now.After(quiz.RegEnd) {
		return domain.Registration{}, domain.ErrRegistrationClosed
	}
	reg := domain.Registration{
		StudentID: studentID,
		QuizID:    quizID,
		Status:    domain.ApprovalPending,
	}
	if err := s.registrations.CreateRegistration(ctx, reg); err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// DecideRegistration applies the teacher's accept/reject decision.
// Re-applying the current status is a no-op success.
func (s *QuizService) DecideRegistration(ctx context.Context, teacherID, quizID, studentID string, status domain.ApprovalStatus) (domain.Registration, error) {
	if status != domain.ApprovalAccepted && status != domain.ApprovalRejected {
		return domain.Registration{}, domain.ValidationError{Field: "status", Reason: "must be accepted or rejected"}
	}
	if _, err := s.ownedQuiz(ctx, teacherID, quizID); err != nil {
		return domain.Registration{}, err
	}
	reg, err := s.registrations.GetRegistration(ctx, studentID, quizID)
	if err != nil {
		return domain.Registration{}, err
	}
	if reg.Status == status {
		return reg, nil
	}
	if err := s.registrations.SetApproval(ctx, studentID, quizID, status); err != nil {
		return domain.Registration{}, err
	}
	reg.Status = status
	return reg, nil
}

// PendingRegistrations lists registrations still awaiting the teacher's decision.
func (s *QuizService) PendingRegistrations(ctx context.Context, teacherID, quizID string) ([]domain.Registration, error) {
	if _, err := s.ownedQuiz(ctx, teacherID, quizID); err != nil {
		return nil, err
	}
	return s.registrations.ListRegistrations(ctx, quizID, domain.ApprovalPending)
}

func (s *QuizService) ownedQuiz(ctx context.Context, teacherID, quizID string) (domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.TeacherID != teacherID {
		return domain.Quiz{}, domain.ErrNotQuizOwner
	}
	return quiz, nil
}

func buildQuestions(inputs []QuestionInput) []domain.Question {
	questions := make([]domain.Question, 0, len(inputs))
	for _, q := range inputs {
		questions = append(questions, domain.Question{
			ID:            uuid.NewString(),
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	return questions
}
