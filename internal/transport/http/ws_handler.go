package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"github.com/gorilla/websocket"
)

// AttemptCreator is implemented by stores that can open attempts, letting a
// client connect without a pre-created attempt ID.
type AttemptCreator interface {
	CreateAttempt(ctx context.Context, quizID string) (string, error)
}

// WSHandler drives one attempt session per connection. All UI interaction
// arrives as typed inbound messages dispatched through a single handler.
type WSHandler struct {
	service  *app.AttemptService
	creator  AttemptCreator
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, creator AttemptCreator) *WSHandler {
	return &WSHandler{
		service: service,
		creator: creator,
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

type selectPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// optionView is an Option with the correct flag stripped; clients never see
// correctness mid-attempt.
type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID         string       `json:"id"`
	Prompt     string       `json:"prompt"`
	Options    []optionView `json:"options"`
	IsMultiple bool         `json:"isMultiple"`
	ImageURL   string       `json:"imageUrl,omitempty"`
}

type statePayload struct {
	AttemptID       string               `json:"attemptId"`
	QuizID          string               `json:"quizId"`
	Status          domain.AttemptStatus `json:"status"`
	CurrentQuestion *questionView        `json:"currentQuestion"`
	QuestionIndex   int                  `json:"questionIndex"`
	TotalQuestions  int                  `json:"totalQuestions"`
	Selected        []string             `json:"selected"`
	Answers         domain.AnswerMap     `json:"answers"`
	Progress        float64              `json:"progress"`
	IsFirstQuestion bool                 `json:"isFirstQuestion"`
	IsLastQuestion  bool                 `json:"isLastQuestion"`
	IsCompleted     bool                 `json:"isCompleted"`
	Results         *domain.Results      `json:"results,omitempty"`
}

// ServeWS upgrades the request and runs the attempt message loop. Requires
// quizId; if attemptId is absent a new attempt is opened on the store.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	attemptID := r.URL.Query().Get("attemptId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	if attemptID == "" {
		if h.creator == nil {
			http.Error(w, "missing attemptId", http.StatusBadRequest)
			return
		}
		created, err := h.creator.CreateAttempt(r.Context(), quizID)
		if err != nil {
			http.Error(w, "create attempt: "+err.Error(), http.StatusBadRequest)
			return
		}
		attemptID = created
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if _, err := h.service.Resume(r.Context(), quizID, attemptID); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Release(attemptID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	send <- h.stateMessage(attemptID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), attemptID, inbound, send)
	}

	close(send)
	<-writerDone
}

// dispatch routes one inbound message. Unknown types get an error reply;
// everything else answers with a fresh state snapshot.
func (h *WSHandler) dispatch(ctx context.Context, attemptID string, inbound inboundMessage, send chan<- outboundMessage[any]) {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
			return
		}
		if _, err := h.service.SelectAnswer(attemptID, payload.QuestionID, payload.OptionID); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			return
		}
		send <- h.stateMessage(attemptID)
	case "next":
		_, results, err := h.service.NextQuestion(ctx, attemptID)
		if err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			return
		}
		if results != nil {
			send <- outboundMessage[any]{Type: "results", Payload: *results}
		}
		send <- h.stateMessage(attemptID)
	case "previous":
		if _, err := h.service.PreviousQuestion(attemptID); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			return
		}
		send <- h.stateMessage(attemptID)
	case "abandon":
		h.service.Abandon(ctx, attemptID)
		send <- outboundMessage[any]{Type: "state", Payload: statePayload{AttemptID: attemptID, Status: domain.AttemptAbandoned}}
	case "state":
		send <- h.stateMessage(attemptID)
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
	}
}

func (h *WSHandler) stateMessage(attemptID string) outboundMessage[any] {
	session, ok := h.service.Session(attemptID)
	if !ok {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: domain.ErrAttemptNotFound.Error()}}
	}

	snapshot := session.Snapshot()
	definition := session.Definition()

	payload := statePayload{
		AttemptID:       snapshot.AttemptID,
		QuizID:          snapshot.QuizID,
		Status:          snapshot.Status,
		QuestionIndex:   snapshot.CurrentQuestionIndex,
		TotalQuestions:  len(definition.Questions),
		Selected:        session.SelectedAnswers(),
		Answers:         snapshot.Answers,
		Progress:        session.Progress(),
		IsFirstQuestion: session.IsFirstQuestion(),
		IsLastQuestion:  session.IsLastQuestion(),
		IsCompleted:     session.IsCompleted(),
		Results:         snapshot.Results,
	}
	if q := session.CurrentQuestion(); q != nil {
		payload.CurrentQuestion = viewQuestion(*q)
	}
	return outboundMessage[any]{Type: "state", Payload: payload}
}

func viewQuestion(q domain.Question) *questionView {
	options := make([]optionView, 0, len(q.Options))
	for _, opt := range q.Options {
		options = append(options, optionView{ID: opt.ID, Text: opt.Text})
	}
	return &questionView{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    options,
		IsMultiple: q.IsMultiple,
		ImageURL:   q.ImageURL,
	}
}
