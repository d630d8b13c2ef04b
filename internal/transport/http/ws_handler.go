package http

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

// errInvalidCode classifies like a bad password: the code is the credential.
var errInvalidCode = fmt.Errorf("invalid or expired attempt code: %w", domain.ErrInvalidPassword)

// WSHandler serves the live attempt over a websocket: the client opens the
// attempt (password or one-time code), answers locally, and submits once.
// The server stays the sole arbiter of "submitted" — a dropped connection
// before submit leaves the registration unattempted.
type WSHandler struct {
	service  *app.QuizService
	codes    app.CodeStore
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, codes app.CodeStore) *WSHandler {
	return &WSHandler{
		service: service,
		codes:   codes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type openPayload struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

type submitPayload struct {
	Answers map[string]int `json:"answers"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// ServeWS upgrades the request and runs the attempt conversation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	quizID := r.URL.Query().Get("quizId")
	if studentID == "" || quizID == "" {
		http.Error(w, "missing studentId or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "open":
			var payload openPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid open payload", "validation")
				continue
			}
			view, err := h.open(r, studentID, quizID, payload)
			if err != nil {
				h.sendErrorFor(conn, err)
				continue
			}
			h.send(conn, outboundMessage{Type: "attempt", Payload: attemptPayload{
				Quiz:             view.Quiz,
				RemainingSeconds: int64(view.Remaining / time.Second),
			}})
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				h.sendError(conn, "invalid submit payload", "validation")
				continue
			}
			answers, err := parseAnswers(payload.Answers)
			if err != nil {
				h.sendErrorFor(conn, err)
				continue
			}
			result, total, err := h.service.SubmitAttempt(r.Context(), studentID, quizID, answers)
			if err != nil {
				h.sendErrorFor(conn, err)
				continue
			}
			h.send(conn, outboundMessage{Type: "result", Payload: resultPayload{
				Score:   result.Score,
				Total:   total,
				Answers: result.Answers,
			}})
		default:
			h.sendError(conn, "unsupported message type", "validation")
		}
	}
}

// open resolves either flavor of credential: a one-time code issued by the
// REST open endpoint, or the quiz password itself.
func (h *WSHandler) open(r *http.Request, studentID, quizID string, payload openPayload) (app.AttemptView, error) {
	if payload.Code != "" {
		grant, ok, err := h.codes.Consume(r.Context(), payload.Code)
		if err != nil {
			return app.AttemptView{}, err
		}
		if !ok || grant.StudentID != studentID || grant.QuizID != quizID {
			return app.AttemptView{}, errInvalidCode
		}
		return h.service.ResumeAttempt(r.Context(), studentID, quizID)
	}
	return h.service.OpenAttempt(r.Context(), studentID, quizID, payload.Password)
}

func (h *WSHandler) send(conn *websocket.Conn, msg outboundMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (h *WSHandler) sendError(conn *websocket.Conn, message, kind string) {
	h.send(conn, outboundMessage{Type: "error", Payload: errorPayload{Message: message, Kind: kind}})
}

func (h *WSHandler) sendErrorFor(conn *websocket.Conn, err error) {
	_, kind := classify(err)
	h.sendError(conn, err.Error(), kind)
}
