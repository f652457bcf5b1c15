package gameapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trivia-client/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, 5*time.Second), server
}

func TestStartSessionSendsNormalizedRoomCode(t *testing.T) {
	var body map[string]any
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/start" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true, "session_id": 42, "current_difficulty": 1.0, "status": "active",
			"room": map[string]any{"id": 1, "room_code": "ABC123", "name": "Friday"},
		})
	})
	defer server.Close()

	started, err := client.StartSession(context.Background(), 9, 1.0, " abc123 ")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if body["player_id"].(float64) != 9 || body["room_code"] != "ABC123" {
		t.Fatalf("unexpected request body: %v", body)
	}
	if started.SessionID != 42 || started.Room == nil || started.Room.Code != "ABC123" {
		t.Fatalf("unexpected response: %+v", started)
	}
}

func TestStartSessionSurfacesServerMessage(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "room is closed"})
	})
	defer server.Close()

	_, err := client.StartSession(context.Background(), 9, 1.0, "ABC123")
	if err == nil || !strings.Contains(err.Error(), "room is closed") {
		t.Fatalf("expected verbatim server message, got %v", err)
	}
}

func TestNextQuestionThreeWayOutcome(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session_id") != "42" {
			t.Fatalf("missing session_id: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"question": map[string]any{
				"id": 100, "statement": "2+2?", "difficulty": 1.0,
				"options":  []map[string]any{{"id": 7, "text": "4"}, {"id": 8, "text": "5"}},
				"progress": map[string]any{"total_answered": 3, "max_questions": 15},
			},
		})
	})
	defer server.Close()

	next, err := client.NextQuestion(context.Background(), 42, 1.0)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if next.Question == nil || next.Question.ID != 100 || len(next.Question.Options) != 2 {
		t.Fatalf("unexpected question: %+v", next.Question)
	}
	if next.Question.Progress == nil || next.Question.Progress.MaxQuestions != 15 {
		t.Fatalf("progress not decoded: %+v", next.Question.Progress)
	}
}

func TestNextQuestionCompleted(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "completed": true, "message": "done"})
	})
	defer server.Close()

	next, err := client.NextQuestion(context.Background(), 42, 1.0)
	if err != nil {
		t.Fatalf("next question: %v", err)
	}
	if !next.Completed || next.Message != "done" || next.Question != nil {
		t.Fatalf("unexpected outcome: %+v", next)
	}
}

func TestNextQuestionNotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no questions", http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.NextQuestion(context.Background(), 42, 1.0)
	if !errors.Is(err, domain.ErrNoEligibleQuestions) {
		t.Fatalf("expected ErrNoEligibleQuestions, got %v", err)
	}
}

func TestSubmitAnswerUnknownSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.SubmitAnswer(context.Background(), 42, 100, nil, 10)
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitAnswerNilSelectionMarshalsNull(t *testing.T) {
	var raw map[string]json.RawMessage
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/42/answer" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true, "is_correct": false, "score": 5, "lives": 2,
			"next_difficulty": 1.0, "correct_option_id": 7,
		})
	})
	defer server.Close()

	verdict, err := client.SubmitAnswer(context.Background(), 42, 100, nil, 30)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(raw["selected_option_id"]) != "null" {
		t.Fatalf("timeout submissions must send null, got %s", raw["selected_option_id"])
	}
	if string(raw["time_taken"]) != "30" {
		t.Fatalf("expected time_taken 30, got %s", raw["time_taken"])
	}
	if verdict.Lives != 2 || verdict.CorrectOptionID != 7 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestAbandonSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/42/abandon" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "status": "abandoned", "final_score": 30})
	})
	defer server.Close()

	result, err := client.AbandonSession(context.Background(), 42)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if result.Status != "abandoned" || result.FinalScore != 30 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLeaderboard(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stats/leaderboard" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"leaderboard": []map[string]any{
				{"player_name": "Alice", "high_score": 90, "rank": 1},
			},
		})
	})
	defer server.Close()

	entries, err := client.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 1 || entries[0].PlayerName != "Alice" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
