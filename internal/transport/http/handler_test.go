package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

var testBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestServer(t *testing.T) (*httptest.Server, *clock) {
	t.Helper()
	store := memory.NewStore()
	clk := &clock{t: testBase}
	service := app.NewQuizServiceWithClock(store, store, store, clk.now)
	codes := memory.NewCodeStore()

	mux := http.NewServeMux()
	NewHandler(service, codes, 5*time.Minute).Register(mux)
	mux.HandleFunc("/ws/attempt", NewWSHandler(service, codes).ServeWS)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, clk
}

func do(t *testing.T, method, url, identity, id string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if identity != "" {
		req.Header.Set(identity, id)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createQuizBody() map[string]interface{} {
	return map[string]interface{}{
		"title":           "Midterm",
		"course":          "CS-301",
		"section":         "A",
		"password":        "letmein",
		"durationMinutes": 30,
		"regStart":        testBase,
		"regEnd":          testBase.Add(time.Hour),
		"attemptStart":    testBase.Add(time.Hour),
		"attemptEnd":      testBase.Add(3 * time.Hour),
		"questions": []map[string]interface{}{
			{"text": "q0", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 1},
			{"text": "q1", "options": []string{"a", "b", "c", "d"}, "correctAnswer": 0},
		},
	}
}

func TestQuizLifecycleOverREST(t *testing.T) {
	server, clk := newTestServer(t)

	// Teacher creates the quiz.
	resp := do(t, "POST", server.URL+"/teacher/quizzes", "X-Teacher-ID", "t1", createQuizBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create quiz: status %d", resp.StatusCode)
	}
	var quiz domain.Quiz
	decodeBody(t, resp, &quiz)
	if quiz.ID == "" {
		t.Fatalf("expected quiz id")
	}

	// Student lists quizzes and registers.
	clk.t = testBase.Add(10 * time.Minute)
	resp = do(t, "GET", server.URL+"/student/quizzes?course=CS-301&section=A", "X-Student-ID", "s1", nil)
	var listings []app.QuizListing
	decodeBody(t, resp, &listings)
	if len(listings) != 1 || !listings[0].Eligibility.CanRegister {
		t.Fatalf("expected registerable listing, got %+v", listings)
	}

	resp = do(t, "POST", server.URL+"/student/registrations", "X-Student-ID", "s1", map[string]string{"quizId": quiz.ID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Teacher sees the pending registration and accepts it.
	resp = do(t, "GET", server.URL+"/teacher/quizzes/"+quiz.ID+"/registrations", "X-Teacher-ID", "t1", nil)
	var pending []domain.Registration
	decodeBody(t, resp, &pending)
	if len(pending) != 1 || pending[0].StudentID != "s1" {
		t.Fatalf("expected one pending registration, got %+v", pending)
	}

	resp = do(t, "PUT", server.URL+"/teacher/quizzes/"+quiz.ID+"/approval", "X-Teacher-ID", "t1", map[string]string{
		"studentId": "s1", "status": "accepted",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Student opens the attempt in the window.
	clk.t = testBase.Add(90 * time.Minute)
	resp = do(t, "POST", server.URL+"/student/attempts/open", "X-Student-ID", "s1", map[string]string{
		"quizId": quiz.ID, "password": "letmein",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open: status %d", resp.StatusCode)
	}
	var attempt attemptPayload
	decodeBody(t, resp, &attempt)
	if attempt.RemainingSeconds != 1800 {
		t.Fatalf("expected 1800s remaining, got %d", attempt.RemainingSeconds)
	}
	if attempt.Code == "" {
		t.Fatalf("expected one-time attempt code")
	}
	if len(attempt.Quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(attempt.Quiz.Questions))
	}

	// Submit: one right, one wrong.
	resp = do(t, "POST", server.URL+"/student/attempts/submit", "X-Student-ID", "s1", map[string]interface{}{
		"quizId":  quiz.ID,
		"answers": map[string]int{"0": 1, "1": 3},
	})
	var result resultPayload
	decodeBody(t, resp, &result)
	if result.Score != 1 || result.Total != 2 {
		t.Fatalf("expected 1/2, got %d/%d", result.Score, result.Total)
	}

	// A second submission is rejected as a duplicate.
	resp = do(t, "POST", server.URL+"/student/attempts/submit", "X-Student-ID", "s1", map[string]interface{}{
		"quizId":  quiz.ID,
		"answers": map[string]int{"0": 1},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate submit: status %d", resp.StatusCode)
	}
	var failure errorBody
	decodeBody(t, resp, &failure)
	if failure.Kind != "duplicate_submission" {
		t.Fatalf("expected duplicate_submission, got %q", failure.Kind)
	}

	// Result is withheld until released.
	resp = do(t, "GET", server.URL+"/student/quizzes/"+quiz.ID+"/result", "X-Student-ID", "s1", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unreleased result: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "PUT", server.URL+"/teacher/quizzes/"+quiz.ID+"/results-release", "X-Teacher-ID", "t1", map[string]bool{"released": true})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("release: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = do(t, "GET", server.URL+"/student/quizzes/"+quiz.ID+"/result", "X-Student-ID", "s1", nil)
	var stored domain.AttemptResult
	decodeBody(t, resp, &stored)
	if stored.Score != 1 {
		t.Fatalf("expected stored score 1, got %d", stored.Score)
	}

	// Teacher reads the full result list.
	resp = do(t, "GET", server.URL+"/teacher/quizzes/"+quiz.ID+"/results", "X-Teacher-ID", "t1", nil)
	var results []domain.AttemptResult
	decodeBody(t, resp, &results)
	if len(results) != 1 || results[0].StudentID != "s1" {
		t.Fatalf("expected one result for s1, got %+v", results)
	}
}

func TestAttemptViewNeverLeaksAnswerKeys(t *testing.T) {
	server, _ := newTestServer(t)

	resp := do(t, "POST", server.URL+"/teacher/quizzes", "X-Teacher-ID", "t1", createQuizBody())
	var quiz domain.Quiz
	decodeBody(t, resp, &quiz)

	resp = do(t, "GET", server.URL+"/quizzes/"+quiz.ID+"/view", "", "", nil)
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(buf.String(), "correctAnswer") {
		t.Fatalf("attempt view leaked answer keys: %s", buf.String())
	}
}

func TestOpenAttemptWrongPassword(t *testing.T) {
	server, clk := newTestServer(t)

	resp := do(t, "POST", server.URL+"/teacher/quizzes", "X-Teacher-ID", "t1", createQuizBody())
	var quiz domain.Quiz
	decodeBody(t, resp, &quiz)

	clk.t = testBase.Add(10 * time.Minute)
	resp = do(t, "POST", server.URL+"/student/registrations", "X-Student-ID", "s1", map[string]string{"quizId": quiz.ID})
	resp.Body.Close()
	resp = do(t, "PUT", server.URL+"/teacher/quizzes/"+quiz.ID+"/approval", "X-Teacher-ID", "t1", map[string]string{
		"studentId": "s1", "status": "accepted",
	})
	resp.Body.Close()

	clk.t = testBase.Add(90 * time.Minute)
	resp = do(t, "POST", server.URL+"/student/attempts/open", "X-Student-ID", "s1", map[string]string{
		"quizId": quiz.ID, "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var failure errorBody
	decodeBody(t, resp, &failure)
	if failure.Kind != "invalid_credential" {
		t.Fatalf("expected invalid_credential, got %q", failure.Kind)
	}
}

func TestIdentityHeaderRequired(t *testing.T) {
	server, _ := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/student/quizzes"},
		{"POST", "/teacher/quizzes"},
	} {
		resp := do(t, tc.method, server.URL+tc.path, "", "", nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400 without identity, got %d", tc.method, tc.path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestParseAnswersRejectsBadKeys(t *testing.T) {
	if _, err := parseAnswers(map[string]int{"not-a-number": 1}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := parseAnswers(map[string]int{"-1": 1}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for negative key, got %v", err)
	}
	answers, err := parseAnswers(map[string]int{"0": 2, "3": 1})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if answers[0] != 2 || answers[3] != 1 {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestClassifyStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.ErrQuizNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrInvalidPassword, http.StatusUnauthorized, "invalid_credential"},
		{domain.ErrDuplicateSubmission, http.StatusConflict, "duplicate_submission"},
		{domain.ErrQuizLocked, http.StatusConflict, "quiz_locked"},
		{domain.ErrAttemptWindowClosed, http.StatusForbidden, "attempt_window_closed"},
		{domain.ValidationError{Field: "x", Reason: "y"}, http.StatusBadRequest, "validation"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, kind := classify(tc.err)
		if status != tc.status || kind != tc.kind {
			t.Fatalf("classify(%v) = %d %q, want %d %q", tc.err, status, kind, tc.status, tc.kind)
		}
	}
}
