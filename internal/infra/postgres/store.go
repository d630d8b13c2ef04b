package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"classquiz-service/internal/domain"
)

// uniqueViolation is the Postgres error code for duplicate-key inserts.
const uniqueViolation = "23505"

// Store persists quizzes, registrations and attempt results in Postgres.
// The (student_id, quiz_id) primary keys on registrations and
// attempt_results carry the at-most-once guarantees; the application never
// relies on read-then-write.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	questions, err := json.Marshal(quiz.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO quizzes
			(id, teacher_id, title, course, section, password_hash, duration_minutes,
			 reg_start, reg_end, attempt_start, attempt_end, results_released, questions)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		quiz.ID, quiz.TeacherID, quiz.Title, quiz.Course, quiz.Section, quiz.PasswordHash,
		quiz.DurationMinutes, quiz.RegStart, quiz.RegEnd, quiz.AttemptStart, quiz.AttemptEnd,
		quiz.ResultsReleased, questions,
	)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

func (s *Store) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, teacher_id, title, course, section, password_hash, duration_minutes,
		       reg_start, reg_end, attempt_start, attempt_end, results_released, questions
		FROM quizzes WHERE id = $1`, quizID)
	quiz, err := scanQuiz(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("get quiz: %w", err)
	}
	return quiz, nil
}

// ListQuizzes filters by course and section; empty strings mean no
// filtering on that field.
func (s *Store) ListQuizzes(ctx context.Context, course, section string) ([]domain.Quiz, error) {
	query := `
		SELECT id, teacher_id, title, course, section, password_hash, duration_minutes,
		       reg_start, reg_end, attempt_start, attempt_end, results_released, questions
		FROM quizzes WHERE 1=1`
	var args []interface{}
	if course != "" {
		args = append(args, course)
		query += fmt.Sprintf(" AND course = $%d", len(args))
	}
	if section != "" {
		args = append(args, section)
		query += fmt.Sprintf(" AND section = $%d", len(args))
	}
	query += " ORDER BY attempt_start, id"
	return s.queryQuizzes(ctx, query, args...)
}

func (s *Store) ListQuizzesByTeacher(ctx context.Context, teacherID string) ([]domain.Quiz, error) {
	return s.queryQuizzes(ctx, `
		SELECT id, teacher_id, title, course, section, password_hash, duration_minutes,
		       reg_start, reg_end, attempt_start, attempt_end, results_released, questions
		FROM quizzes WHERE teacher_id = $1 ORDER BY attempt_start, id`, teacherID)
}

func (s *Store) queryQuizzes(ctx context.Context, query string, args ...interface{}) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()
	var quizzes []domain.Quiz
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (s *Store) ReplaceQuestions(ctx context.Context, quizID string, questions []domain.Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	ct, err := s.pool.Exec(ctx, `UPDATE quizzes SET questions = $2 WHERE id = $1`, quizID, raw)
	if err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) SetResultsReleased(ctx context.Context, quizID string, released bool) error {
	ct, err := s.pool.Exec(ctx, `UPDATE quizzes SET results_released = $2 WHERE id = $1`, quizID, released)
	if err != nil {
		return fmt.Errorf("set results released: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}

func (s *Store) CreateRegistration(ctx context.Context, reg domain.Registration) error {
	ct, err := s.pool.Exec(ctx, `
		INSERT INTO registrations (student_id, quiz_id, status, attempted)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (student_id, quiz_id) DO NOTHING`,
		reg.StudentID, reg.QuizID, reg.Status, reg.Attempted,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAlreadyRegistered
	}
	return nil
}

func (s *Store) GetRegistration(ctx context.Context, studentID, quizID string) (domain.Registration, error) {
	var reg domain.Registration
	err := s.pool.QueryRow(ctx, `
		SELECT student_id, quiz_id, status, attempted
		FROM registrations WHERE student_id = $1 AND quiz_id = $2`,
		studentID, quizID,
	).Scan(&reg.StudentID, &reg.QuizID, &reg.Status, &reg.Attempted)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Registration{}, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return domain.Registration{}, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *Store) ListRegistrations(ctx context.Context, quizID string, status domain.ApprovalStatus) ([]domain.Registration, error) {
	query := `SELECT student_id, quiz_id, status, attempted FROM registrations WHERE quiz_id = $1`
	args := []interface{}{quizID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY student_id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	var regs []domain.Registration
	for rows.Next() {
		var reg domain.Registration
		if err := rows.Scan(&reg.StudentID, &reg.QuizID, &reg.Status, &reg.Attempted); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) SetApproval(ctx context.Context, studentID, quizID string, status domain.ApprovalStatus) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE registrations SET status = $3 WHERE student_id = $1 AND quiz_id = $2`,
		studentID, quizID, status,
	)
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (s *Store) HasRegistrations(ctx context.Context, quizID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE quiz_id = $1)`, quizID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has registrations: %w", err)
	}
	return exists, nil
}

// RecordSubmission runs the two submission writes in one transaction:
// the result insert guarded by the primary key, and the attempted-flag
// flip conditioned on its prior value. Zero affected rows on either write
// means another submission won the race and the whole transaction rolls
// back with domain.ErrDuplicateSubmission.
func (s *Store) RecordSubmission(ctx context.Context, result domain.AttemptResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		INSERT INTO attempt_results (student_id, quiz_id, answers, score, submitted_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (student_id, quiz_id) DO NOTHING`,
		result.StudentID, result.QuizID, answers, result.Score, result.SubmittedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSubmission
		}
		return fmt.Errorf("insert attempt result: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrDuplicateSubmission
	}

	ct, err = tx.Exec(ctx, `
		UPDATE registrations SET attempted = TRUE
		WHERE student_id = $1 AND quiz_id = $2 AND attempted = FALSE`,
		result.StudentID, result.QuizID,
	)
	if err != nil {
		return fmt.Errorf("mark attempted: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrDuplicateSubmission
	}

	return tx.Commit(ctx)
}

func (s *Store) GetResult(ctx context.Context, studentID, quizID string) (domain.AttemptResult, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT student_id, quiz_id, answers, score, submitted_at
		FROM attempt_results WHERE student_id = $1 AND quiz_id = $2`,
		studentID, quizID)
	result, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.AttemptResult{}, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

func (s *Store) ListResults(ctx context.Context, quizID string) ([]domain.AttemptResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id, quiz_id, answers, score, submitted_at
		FROM attempt_results WHERE quiz_id = $1 ORDER BY student_id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	var results []domain.AttemptResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuiz(row rowScanner) (domain.Quiz, error) {
	var quiz domain.Quiz
	var questions []byte
	err := row.Scan(
		&quiz.ID, &quiz.TeacherID, &quiz.Title, &quiz.Course, &quiz.Section,
		&quiz.PasswordHash, &quiz.DurationMinutes, &quiz.RegStart, &quiz.RegEnd,
		&quiz.AttemptStart, &quiz.AttemptEnd, &quiz.ResultsReleased, &questions,
	)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := json.Unmarshal(questions, &quiz.Questions); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return quiz, nil
}

func scanResult(row rowScanner) (domain.AttemptResult, error) {
	var result domain.AttemptResult
	var answers []byte
	err := row.Scan(&result.StudentID, &result.QuizID, &answers, &result.Score, &result.SubmittedAt)
	if err != nil {
		return domain.AttemptResult{}, err
	}
	if err := json.Unmarshal(answers, &result.Answers); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
