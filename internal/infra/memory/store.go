package memory

import (
	"context"
	"sort"
	"sync"

	"classquiz-service/internal/domain"
)

type pairKey struct {
	studentID string
	quizID    string
}

// Store is an in-memory implementation of the app repositories. All
// mutations run under one mutex, which is what makes RecordSubmission's
// check-and-write atomic: the same guarantee a SQL store gets from its
// primary keys and conditional update.
type Store struct {
	mu            sync.RWMutex
	quizzes       map[string]domain.Quiz
	registrations map[pairKey]domain.Registration
	results       map[pairKey]domain.AttemptResult
}

func NewStore() *Store {
	return &Store{
		quizzes:       make(map[string]domain.Quiz),
		registrations: make(map[pairKey]domain.Registration),
		results:       make(map[pairKey]domain.AttemptResult),
	}
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID] = quiz
	return nil
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

// ListQuizzes filters by course and section; empty strings match everything.
func (s *Store) ListQuizzes(_ context.Context, course, section string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var quizzes []domain.Quiz
	for _, quiz := range s.quizzes {
		if course != "" && quiz.Course != course {
			continue
		}
		if section != "" && quiz.Section != section {
			continue
		}
		quizzes = append(quizzes, quiz)
	}
	sortQuizzes(quizzes)
	return quizzes, nil
}

func (s *Store) ListQuizzesByTeacher(_ context.Context, teacherID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var quizzes []domain.Quiz
	for _, quiz := range s.quizzes {
		if quiz.TeacherID == teacherID {
			quizzes = append(quizzes, quiz)
		}
	}
	sortQuizzes(quizzes)
	return quizzes, nil
}

func (s *Store) ReplaceQuestions(_ context.Context, quizID string, questions []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Questions = questions
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) SetResultsReleased(_ context.Context, quizID string, released bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.ResultsReleased = released
	s.quizzes[quizID] = quiz
	return nil
}

func (s *Store) CreateRegistration(_ context.Context, reg domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{reg.StudentID, reg.QuizID}
	if _, exists := s.registrations[key]; exists {
		return domain.ErrAlreadyRegistered
	}
	s.registrations[key] = reg
	return nil
}

func (s *Store) GetRegistration(_ context.Context, studentID, quizID string) (domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[pairKey{studentID, quizID}]
	if !ok {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	return reg, nil
}

// ListRegistrations returns registrations for a quiz; an empty status
// matches all of them.
func (s *Store) ListRegistrations(_ context.Context, quizID string, status domain.ApprovalStatus) ([]domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var regs []domain.Registration
	for _, reg := range s.registrations {
		if reg.QuizID != quizID {
			continue
		}
		if status != "" && reg.Status != status {
			continue
		}
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].StudentID < regs[j].StudentID })
	return regs, nil
}

func (s *Store) SetApproval(_ context.Context, studentID, quizID string, status domain.ApprovalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{studentID, quizID}
	reg, ok := s.registrations[key]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	reg.Status = status
	s.registrations[key] = reg
	return nil
}

func (s *Store) HasRegistrations(_ context.Context, quizID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, reg := range s.registrations {
		if reg.QuizID == quizID {
			return true, nil
		}
	}
	return false, nil
}

// RecordSubmission inserts the attempt result and flips the registration's
// attempted flag as one critical section. The first submission wins; any
// later one, concurrent or retried, gets domain.ErrDuplicateSubmission.
func (s *Store) RecordSubmission(_ context.Context, result domain.AttemptResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{result.StudentID, result.QuizID}
	if _, exists := s.results[key]; exists {
		return domain.ErrDuplicateSubmission
	}
	reg, ok := s.registrations[key]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	if reg.Attempted {
		return domain.ErrDuplicateSubmission
	}
	s.results[key] = result
	reg.Attempted = true
	s.registrations[key] = reg
	return nil
}

func (s *Store) GetResult(_ context.Context, studentID, quizID string) (domain.AttemptResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[pairKey{studentID, quizID}]
	if !ok {
		return domain.AttemptResult{}, domain.ErrResultNotFound
	}
	return result, nil
}

func (s *Store) ListResults(_ context.Context, quizID string) ([]domain.AttemptResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []domain.AttemptResult
	for _, result := range s.results {
		if result.QuizID == quizID {
			results = append(results, result)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StudentID < results[j].StudentID })
	return results, nil
}

func sortQuizzes(quizzes []domain.Quiz) {
	sort.Slice(quizzes, func(i, j int) bool {
		if !quizzes[i].AttemptStart.Equal(quizzes[j].AttemptStart) {
			return quizzes[i].AttemptStart.Before(quizzes[j].AttemptStart)
		}
		return quizzes[i].ID < quizzes[j].ID
	})
}
