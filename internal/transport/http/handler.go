package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

// Handler exposes the quiz lifecycle over JSON/HTTP. Identity arrives as
// trusted X-Student-ID / X-Teacher-ID headers set by the authenticating
// front layer; the core never re-verifies credentials.
type Handler struct {
	service *app.QuizService
	codes   app.CodeStore
	codeTTL time.Duration
}

func NewHandler(service *app.QuizService, codes app.CodeStore, codeTTL time.Duration) *Handler {
	return &Handler{service: service, codes: codes, codeTTL: codeTTL}
}

// Register wires all routes into the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /student/quizzes", h.listQuizzes)
	mux.HandleFunc("POST /student/registrations", h.register)
	mux.HandleFunc("POST /student/attempts/open", h.openAttempt)
	mux.HandleFunc("POST /student/attempts/submit", h.submitAttempt)
	mux.HandleFunc("GET /student/quizzes/{id}/result", h.studentResult)

	mux.HandleFunc("GET /quizzes/{id}/view", h.attemptView)

	mux.HandleFunc("POST /teacher/quizzes", h.createQuiz)
	mux.HandleFunc("GET /teacher/quizzes", h.teacherQuizzes)
	mux.HandleFunc("GET /teacher/quizzes/{id}/registrations", h.registrations)
	mux.HandleFunc("PUT /teacher/quizzes/{id}/approval", h.approve)
	mux.HandleFunc("PUT /teacher/quizzes/{id}/questions", h.replaceQuestions)
	mux.HandleFunc("PUT /teacher/quizzes/{id}/results-release", h.releaseResults)
	mux.HandleFunc("GET /teacher/quizzes/{id}/results", h.quizResults)
}

// attemptPayload is the wire shape of an open attempt. Remaining time is
// expressed in whole seconds for the client countdown.
type attemptPayload struct {
	Quiz             domain.QuizView `json:"quiz"`
	RemainingSeconds int64           `json:"remainingSeconds"`
	Code             string          `json:"code,omitempty"`
}

type resultPayload struct {
	Score   int             `json:"score"`
	Total   int             `json:"total"`
	Answers []domain.Answer `json:"answers"`
}

func (h *Handler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentID(w, r)
	if !ok {
		return
	}
	listings, err := h.service.ListQuizzes(r.Context(), studentID, r.URL.Query().Get("course"), r.URL.Query().Get("section"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentID(w, r)
	if !ok {
		return
	}
	var body struct {
		QuizID string `json:"quizId"`
	}
	if !decode(w, r, &body) {
		return
	}
	reg, err := h.service.Register(r.Context(), studentID, body.QuizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

func (h *Handler) openAttempt(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentID(w, r)
	if !ok {
		return
	}
	var body struct {
		QuizID   string `json:"quizId"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	view, err := h.service.OpenAttempt(r.Context(), studentID, body.QuizID, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	code, err := generateCode()
	if err != nil {
		writeError(w, err)
		return
	}
	grant := app.AttemptGrant{StudentID: studentID, QuizID: body.QuizID}
	if err := h.codes.Put(r.Context(), code, grant, h.codeTTL); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptPayload{
		Quiz:             view.Quiz,
		RemainingSeconds: int64(view.Remaining / time.Second),
		Code:             code,
	})
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentID(w, r)
	if !ok {
		return
	}
	var body struct {
		QuizID  string         `json:"quizId"`
		Answers map[string]int `json:"answers"`
	}
	if !decode(w, r, &body) {
		return
	}
	answers, err := parseAnswers(body.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	result, total, err := h.service.SubmitAttempt(r.Context(), studentID, body.QuizID, answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultPayload{Score: result.Score, Total: total, Answers: result.Answers})
}

func (h *Handler) studentResult(w http.ResponseWriter, r *http.Request) {
	studentID, ok := studentID(w, r)
	if !ok {
		return
	}
	result, err := h.service.StudentResult(r.Context(), studentID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) attemptView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetAttemptView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptPayload{
		Quiz:             view.Quiz,
		RemainingSeconds: int64(view.Remaining / time.Second),
	})
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	var input app.CreateQuizInput
	if !decode(w, r, &input) {
		return
	}
	input.TeacherID = teacherID
	quiz, err := h.service.CreateQuiz(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *Handler) teacherQuizzes(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	quizzes, err := h.service.TeacherQuizzes(r.Context(), teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) registrations(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	regs, err := h.service.PendingRegistrations(r.Context(), teacherID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	var body struct {
		StudentID string                `json:"studentId"`
		Status    domain.ApprovalStatus `json:"status"`
	}
	if !decode(w, r, &body) {
		return
	}
	reg, err := h.service.DecideRegistration(r.Context(), teacherID, r.PathValue("id"), body.StudentID, body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (h *Handler) replaceQuestions(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	var body struct {
		Questions []app.QuestionInput `json:"questions"`
	}
	if !decode(w, r, &body) {
		return
	}
	quiz, err := h.service.ReplaceQuestions(r.Context(), teacherID, r.PathValue("id"), body.Questions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) releaseResults(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	var body struct {
		Released bool `json:"released"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := h.service.ReleaseResults(r.Context(), teacherID, r.PathValue("id"), body.Released); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quizResults(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := teacherID(w, r)
	if !ok {
		return
	}
	results, err := h.service.QuizResults(r.Context(), teacherID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func studentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Student-ID")
	if id == "" {
		http.Error(w, "missing X-Student-ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func teacherID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Teacher-ID")
	if id == "" {
		http.Error(w, "missing X-Teacher-ID", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// parseAnswers converts the JSON object keyed by question position into the
// map the scoring path expects.
func parseAnswers(raw map[string]int) (map[int]int, error) {
	answers := make(map[int]int, len(raw))
	for key, option := range raw {
		index, err := strconv.Atoi(key)
		if err != nil || index < 0 {
			return nil, domain.ValidationError{Field: "answers", Reason: "keys must be question positions"}
		}
		answers[index] = option
	}
	return answers, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

// classify maps domain errors onto HTTP statuses and stable kind labels.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrRegistrationNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidPassword):
		return http.StatusUnauthorized, "invalid_credential"
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return http.StatusConflict, "already_registered"
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict, "duplicate_submission"
	case errors.Is(err, domain.ErrQuizLocked):
		return http.StatusConflict, "quiz_locked"
	case errors.Is(err, domain.ErrRegistrationClosed):
		return http.StatusForbidden, "registration_closed"
	case errors.Is(err, domain.ErrAttemptWindowClosed):
		return http.StatusForbidden, "attempt_window_closed"
	case errors.Is(err, domain.ErrRegistrationNotApproved):
		return http.StatusForbidden, "not_approved"
	case errors.Is(err, domain.ErrNotQuizOwner):
		return http.StatusForbidden, "not_owner"
	case errors.Is(err, domain.ErrResultsNotReleased):
		return http.StatusForbidden, "results_not_released"
	case domain.IsValidation(err):
		return http.StatusBadRequest, "validation"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func generateCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
