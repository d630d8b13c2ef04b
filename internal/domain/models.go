package domain

import (
	"fmt"
	"time"
)

// ApprovalStatus is the teacher's decision on a quiz registration.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalAccepted ApprovalStatus = "accepted"
	ApprovalRejected ApprovalStatus = "rejected"
)

// StatusNotRegistered is the listing label for students without a registration.
const StatusNotRegistered = "not_registered"

// OptionsPerQuestion is fixed: every question carries exactly four options.
const OptionsPerQuestion = 4

// Question is a multiple-choice question with a single correct option index.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// QuestionView is the student-facing shape of a Question: no answer key.
type QuestionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// Quiz is a timed, password-protected quiz scoped to a course/section.
// Registration and attempt happen in two separate time windows.
type Quiz struct {
	ID              string     `json:"id"`
	TeacherID       string     `json:"teacherId"`
	Title           string     `json:"title"`
	Course          string     `json:"course"`
	Section         string     `json:"section"`
	PasswordHash    string     `json:"-"`
	DurationMinutes int        `json:"durationMinutes"`
	RegStart        time.Time  `json:"regStart"`
	RegEnd          time.Time  `json:"regEnd"`
	AttemptStart    time.Time  `json:"attemptStart"`
	AttemptEnd      time.Time  `json:"attemptEnd"`
	ResultsReleased bool       `json:"resultsReleased"`
	Questions       []Question `json:"questions"`
}

// QuizView is the student-facing shape of a Quiz: questions without answer keys.
type QuizView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Course          string         `json:"course"`
	Section         string         `json:"section"`
	DurationMinutes int            `json:"durationMinutes"`
	RegStart        time.Time      `json:"regStart"`
	RegEnd          time.Time      `json:"regEnd"`
	AttemptStart    time.Time      `json:"attemptStart"`
	AttemptEnd      time.Time      `json:"attemptEnd"`
	Questions       []QuestionView `json:"questions"`
}

// Duration returns the quiz duration as a time.Duration.
func (q Quiz) Duration() time.Duration {
	return time.Duration(q.DurationMinutes) * time.Minute
}

// View strips the answer keys and password hash from the quiz.
func (q Quiz) View() QuizView {
	questions := make([]QuestionView, 0, len(q.Questions))
	for _, question := range q.Questions {
		questions = append(questions, QuestionView{
			ID:      question.ID,
			Text:    question.Text,
			Options: append([]string(nil), question.Options...),
		})
	}
	return QuizView{
		ID:              q.ID,
		Title:           q.Title,
		Course:          q.Course,
		Section:         q.Section,
		DurationMinutes: q.DurationMinutes,
		RegStart:        q.RegStart,
		RegEnd:          q.RegEnd,
		AttemptStart:    q.AttemptStart,
		AttemptEnd:      q.AttemptEnd,
		Questions:       questions,
	}
}

// Validate checks the quiz definition invariants before it reaches persistence.
func (q Quiz) Validate() error {
	if q.Title == "" {
		return ValidationError{Field: "title", Reason: "required"}
	}
	if q.Course == "" {
		return ValidationError{Field: "course", Reason: "required"}
	}
	if q.Section == "" {
		return ValidationError{Field: "section", Reason: "required"}
	}
	if q.TeacherID == "" {
		return ValidationError{Field: "teacherId", Reason: "required"}
	}
	if !q.RegStart.Before(q.RegEnd) {
		return ValidationError{Field: "regEnd", Reason: "must be after regStart"}
	}
	if q.RegEnd.After(q.AttemptStart) {
		return ValidationError{Field: "attemptStart", Reason: "must not precede regEnd"}
	}
	if !q.AttemptStart.Before(q.AttemptEnd) {
		return ValidationError{Field: "attemptEnd", Reason: "must be after attemptStart"}
	}
	if q.DurationMinutes < 1 {
		return ValidationError{Field: "durationMinutes", Reason: "must be at least 1"}
	}
	if q.Duration() > q.AttemptEnd.Sub(q.AttemptStart) {
		return ValidationError{Field: "durationMinutes", Reason: "must fit inside the attempt window"}
	}
	if len(q.Questions) == 0 {
		return ValidationError{Field: "questions", Reason: "at least one question required"}
	}
	for i, question := range q.Questions {
		if question.Text == "" {
			return ValidationError{Field: fmt.Sprintf("questions[%d].text", i), Reason: "required"}
		}
		if len(question.Options) != OptionsPerQuestion {
			return ValidationError{Field: fmt.Sprintf("questions[%d].options", i), Reason: "exactly 4 options required"}
		}
		for j, opt := range question.Options {
			if opt == "" {
				return ValidationError{Field: fmt.Sprintf("questions[%d].options[%d]", i, j), Reason: "must not be empty"}
			}
		}
		if question.CorrectAnswer < 0 || question.CorrectAnswer >= OptionsPerQuestion {
			return ValidationError{Field: fmt.Sprintf("questions[%d].correctAnswer", i), Reason: "index out of range"}
		}
	}
	return nil
}

// Registration is a student's declared intent to attempt a quiz.
// The attempted flag is monotonic: once true it never reverts.
type Registration struct {
	StudentID string         `json:"studentId"`
	QuizID    string         `json:"quizId"`
	Status    ApprovalStatus `json:"status"`
	Attempted bool           `json:"attempted"`
}

// Answer pairs a question with the option the student selected.
// SelectedOption is -1 when the student left the question unanswered.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"`
}

// AttemptResult is the durable record of one student's single attempt.
// At most one exists per (student, quiz) pair.
type AttemptResult struct {
	StudentID   string    `json:"studentId"`
	QuizID      string    `json:"quizId"`
	Answers     []Answer  `json:"answers"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}
