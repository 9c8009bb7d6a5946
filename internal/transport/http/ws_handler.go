package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"monster-quiz-engine/internal/app"
	"monster-quiz-engine/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
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

type sessionStartPayload struct {
	Questions []string `json:"questions"`
}

type sessionEndedPayload struct {
	Session       domain.GameSession           `json:"session"`
	Notifications []domain.RankingNotification `json:"notifications"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("player")
	if name == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	logger := h.logger.With(slog.String("player", name))

	joined, err := h.service.Join(ctx, name)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer func() {
		if err := h.service.Leave(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("leave failed", slog.Any("error", err))
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// A single writer goroutine owns conn writes. On a write failure it closes
	// conn so the read loop below stops too.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write failed", slog.Any("error", err))
				_ = conn.Close()
				return
			}
		}
	}()

	reply := func(typ string, payload any) {
		enqueue(send, writerDone, outboundMessage[any]{Type: typ, Payload: payload})
	}

	reply("joined", joined)

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "rankings", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	fail := func(msg string) {
		reply("error", errorPayload{Message: msg})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var answer domain.AnswerSubmission
			if err := json.Unmarshal(inbound.Payload, &answer); err != nil {
				fail("invalid answer payload")
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, name, answer)
			if !h.usable(logger, err) {
				fail(err.Error())
				continue
			}
			reply("answerResult", result)
		case "settings":
			var patch domain.SettingsPatch
			if err := json.Unmarshal(inbound.Payload, &patch); err != nil {
				fail("invalid settings payload")
				continue
			}
			current, err := h.service.Settings(ctx, name)
			if err != nil {
				fail(err.Error())
				continue
			}
			if err := patch.Apply(current).Validate(); err != nil {
				fail(err.Error())
				continue
			}
			settings, err := h.service.UpdateSettings(ctx, name, patch)
			if !h.usable(logger, err) {
				fail(err.Error())
				continue
			}
			reply("settings", settings)
		case "sessionStart":
			var payload sessionStartPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					fail("invalid session payload")
					continue
				}
			}
			session, err := h.service.StartSession(ctx, name, payload.Questions)
			if !h.usable(logger, err) {
				fail(err.Error())
				continue
			}
			reply("sessionStarted", session)
		case "sessionEnd":
			session, notes, err := h.service.EndSession(ctx, name)
			if !h.usable(logger, err) {
				fail(err.Error())
				continue
			}
			reply("sessionEnded", sessionEndedPayload{Session: session, Notifications: notes})
		case "stats":
			stats, err := h.service.Stats(ctx, name)
			if err != nil {
				fail(err.Error())
				continue
			}
			reply("stats", stats)
		default:
			fail("unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer goroutine. It gives up once done is closed,
// since nothing drains send after the writer has exited.
func enqueue(send chan<- outboundMessage[any], done <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-done:
		return false
	}
}

// usable reports whether a result accompanying err can still be sent. Failed
// persistence leaves valid in-memory state behind, so it is only logged.
func (h *WSHandler) usable(logger *slog.Logger, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrPersistence) {
		logger.Warn("state not persisted", slog.Any("error", err))
		return true
	}
	return false
}
