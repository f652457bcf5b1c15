package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"trivia-client/internal/app"
	"trivia-client/internal/domain"
	"github.com/gorilla/websocket"
)

// LeaderboardProvider supplies the global ranking for the results view.
type LeaderboardProvider interface {
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// StatsProvider supplies per-session statistics for the results view.
type StatsProvider interface {
	SessionStats(ctx context.Context, sessionID int) (domain.SessionStats, error)
}

// WSHandler is the presentation gateway: one websocket per play-through. It
// streams read-only state snapshots outward and relays the fixed intent set
// inward; it holds no game logic of its own.
type WSHandler struct {
	backend     app.Backend
	identity    app.IdentityStore
	recorder    app.Recorder
	leaderboard LeaderboardProvider
	stats       StatsProvider
	cfg         app.Config
	upgrader    websocket.Upgrader
}

func NewWSHandler(backend app.Backend, identity app.IdentityStore, recorder app.Recorder, leaderboard LeaderboardProvider, stats StatsProvider, cfg app.Config) *WSHandler {
	return &WSHandler{
		backend:     backend,
		identity:    identity,
		recorder:    recorder,
		leaderboard: leaderboard,
		stats:       stats,
		cfg:         cfg,
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
	OptionID int `json:"optionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type resultsPayload struct {
	Outcome     domain.State              `json:"outcome"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
	Stats       *domain.SessionStats      `json:"stats,omitempty"`
}

// ServeWS upgrades the connection, runs one orchestrator for the stored
// identity, and bridges snapshots and intents until either side goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	orch := app.New(h.backend, h.identity, h.recorder, h.cfg)
	defer orch.Close()

	updates, cancel := orch.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	trySend := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-closeSignals:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		resultsSent := false
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !trySend(outboundMessage[any]{Type: "state", Payload: update}) {
					return
				}
				if update.State.Terminal() && !resultsSent {
					resultsSent = true
					if !trySend(outboundMessage[any]{Type: "results", Payload: h.buildResults(r.Context(), update)}) {
						return
					}
				}
			case <-closeSignals:
				return
			}
		}
	}()

	startDone := make(chan struct{})
	go func() {
		defer close(startDone)
		if err := orch.Start(r.Context()); err != nil {
			code := "start_failed"
			if errors.Is(err, domain.ErrMissingIdentity) {
				// Hard precondition failure: the entry flow must run first.
				code = "missing_identity"
			}
			trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Code: code, Message: err.Error()}})
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			orch.SelectOption(payload.OptionID)
		case "submit":
			if err := orch.Submit(r.Context()); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "advance":
			if err := orch.Advance(r.Context()); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "reload":
			if err := orch.Reload(r.Context()); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "abandon":
			orch.OpenAbandonPrompt()
		case "confirmAbandon":
			if err := orch.ConfirmAbandon(r.Context()); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		case "cancelAbandon":
			orch.CancelAbandon()
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	<-startDone
	close(send)
	<-writerDone
}

// buildResults assembles the results view shown after a terminal state.
// Both lookups are best-effort: a missing leaderboard or stats block should
// not hide the outcome itself.
func (h *WSHandler) buildResults(ctx context.Context, snap app.Snapshot) resultsPayload {
	results := resultsPayload{Outcome: snap.State}
	if h.leaderboard != nil {
		entries, err := h.leaderboard.Leaderboard(ctx)
		if err != nil {
			log.Printf("fetch leaderboard: %v", err)
		} else {
			results.Leaderboard = entries
		}
	}
	if h.stats != nil && snap.SessionID != 0 {
		stats, err := h.stats.SessionStats(ctx, snap.SessionID)
		if err != nil {
			log.Printf("fetch session stats: %v", err)
		} else {
			results.Stats = &stats
		}
	}
	return results
}
