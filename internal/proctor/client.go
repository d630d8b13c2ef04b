package proctor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"classquiz-service/internal/domain"
)

// Attempt is the server's answer to a successful open: the quiz without
// answer keys plus the countdown start value.
type Attempt struct {
	Quiz             domain.QuizView `json:"quiz"`
	RemainingSeconds int64           `json:"remainingSeconds"`
}

// Result is the server's scored outcome of a submission.
type Result struct {
	Score   int             `json:"score"`
	Total   int             `json:"total"`
	Answers []domain.Answer `json:"answers"`
}

// ServerError is a typed error relayed from the attempt endpoint.
type ServerError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsDuplicateSubmission reports whether err is the server telling us the
// attempt was already recorded. Callers treat it as terminal, not as a
// failure to retry.
func IsDuplicateSubmission(err error) bool {
	se, ok := err.(ServerError)
	return ok && se.Kind == "duplicate_submission"
}

// Client is a websocket attempt connection. It is not safe for concurrent
// use; drive it from the same event loop as the Controller.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the attempt endpoint. baseURL is the ws:// address of
// the service, e.g. "ws://localhost:8080".
func Dial(ctx context.Context, baseURL, studentID, quizID string) (*Client, error) {
	url := fmt.Sprintf("%s/ws/attempt?studentId=%s&quizId=%s", baseURL, studentID, quizID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial attempt endpoint: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

type clientEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type serverEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Open requests the attempt view. Exactly one of code or password is
// normally set; a one-time code takes precedence.
func (c *Client) Open(password, code string) (Attempt, error) {
	err := c.conn.WriteJSON(clientEnvelope{Type: "open", Payload: map[string]string{
		"password": password,
		"code":     code,
	}})
	if err != nil {
		return Attempt{}, fmt.Errorf("send open: %w", err)
	}
	var attempt Attempt
	if err := c.await("attempt", &attempt); err != nil {
		return Attempt{}, err
	}
	return attempt, nil
}

// Submit sends the answers and waits for the scored result.
func (c *Client) Submit(answers map[int]int) (Result, error) {
	wire := make(map[string]int, len(answers))
	for index, option := range answers {
		wire[strconv.Itoa(index)] = option
	}
	err := c.conn.WriteJSON(clientEnvelope{Type: "submit", Payload: map[string]interface{}{
		"answers": wire,
	}})
	if err != nil {
		return Result{}, fmt.Errorf("send submit: %w", err)
	}
	var result Result
	if err := c.await("result", &result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// await reads messages until one of the wanted type or an error envelope
// arrives.
func (c *Client) await(wanted string, dst interface{}) error {
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg serverEnvelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read %s: %w", wanted, err)
		}
		switch msg.Type {
		case wanted:
			return json.Unmarshal(msg.Payload, dst)
		case "error":
			var se ServerError
			if err := json.Unmarshal(msg.Payload, &se); err != nil {
				return fmt.Errorf("malformed error payload: %w", err)
			}
			return se
		}
	}
}

// Session glues a Client and a Controller into one attempt: the caller
// feeds it UI events (option selections, ticks, visibility changes, the
// submit button) and the session guarantees the server is called at most
// once from this process.
type Session struct {
	client *Client
	ctrl   *Controller

	quiz    domain.QuizView
	answers map[int]int
	result  *Result
}

func NewSession(client *Client, warn WarnFunc) *Session {
	s := &Session{
		client:  client,
		answers: make(map[int]int),
	}
	s.ctrl = NewController(s.submitOnce, warn)
	return s
}

// Begin opens the attempt and starts the countdown.
func (s *Session) Begin(password, code string) error {
	attempt, err := s.client.Open(password, code)
	if err != nil {
		return err
	}
	s.quiz = attempt.Quiz
	s.ctrl.Start(time.Duration(attempt.RemainingSeconds) * time.Second)
	return nil
}

// SelectOption records the student's choice for a question position.
// Selections after the latch flipped are ignored.
func (s *Session) SelectOption(question, option int) {
	if s.ctrl.State() != StateRunning {
		return
	}
	s.answers[question] = option
}

func (s *Session) Tick()           { s.ctrl.Tick() }
func (s *Session) VisibilityLost() { s.ctrl.VisibilityLost() }
func (s *Session) Submit() error   { return s.ctrl.Submit() }
func (s *Session) State() State    { return s.ctrl.State() }
func (s *Session) Guarded() bool   { return s.ctrl.NavigationGuard() }

func (s *Session) Quiz() domain.QuizView { return s.quiz }

// Result returns the scored outcome, nil until a submission succeeded.
func (s *Session) Result() *Result {
	return s.result
}

func (s *Session) submitOnce() error {
	result, err := s.client.Submit(s.answers)
	if err != nil {
		// The server already holding a result means we are done, not broken.
		if IsDuplicateSubmission(err) {
			return nil
		}
		return err
	}
	s.result = &result
	return nil
}
