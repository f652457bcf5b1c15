package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trivia-client/internal/domain"
)

// errNotFound marks an HTTP 404; callers translate it per endpoint, since a
// missing next question and a missing session are different conditions.
var errNotFound = errors.New("game api: not found")

// Client talks to the remote game backend over HTTP/JSON. The backend is the
// sole authority on scoring, lives, difficulty and question selection; this
// client only moves requests and verdicts across the wire.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type startSessionRequest struct {
	PlayerID        int     `json:"player_id"`
	StartDifficulty float64 `json:"start_difficulty"`
	RoomCode        string  `json:"room_code,omitempty"`
}

type startSessionResponse struct {
	OK                bool         `json:"ok"`
	SessionID         int          `json:"session_id"`
	CurrentDifficulty float64      `json:"current_difficulty"`
	Status            string       `json:"status"`
	Room              *domain.Room `json:"room,omitempty"`
	Error             string       `json:"error,omitempty"`
}

// StartSession opens a new play-through for the player. A room code, when
// present, is normalized to upper case the way the backend expects it.
func (c *Client) StartSession(ctx context.Context, playerID int, startDifficulty float64, roomCode string) (domain.StartedSession, error) {
	req := startSessionRequest{PlayerID: playerID, StartDifficulty: startDifficulty}
	if code := strings.TrimSpace(roomCode); code != "" {
		req.RoomCode = strings.ToUpper(code)
	}

	var resp startSessionResponse
	if err := c.post(ctx, "/games/start", req, &resp); err != nil {
		return domain.StartedSession{}, err
	}
	if !resp.OK {
		return domain.StartedSession{}, serverError("start session", resp.Error)
	}
	return domain.StartedSession{
		SessionID:         resp.SessionID,
		CurrentDifficulty: resp.CurrentDifficulty,
		Status:            resp.Status,
		Room:              resp.Room,
	}, nil
}

type nextQuestionResponse struct {
	OK        bool             `json:"ok"`
	Question  *domain.Question `json:"question,omitempty"`
	Completed bool             `json:"completed,omitempty"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// NextQuestion fetches the next eligible question. The outcome is three-way:
// a question, an explicit completion, or neither. A 404 maps to
// domain.ErrNoEligibleQuestions so callers can tell exhaustion apart from
// transient failures.
func (c *Client) NextQuestion(ctx context.Context, sessionID int, difficulty float64) (domain.NextQuestion, error) {
	path := fmt.Sprintf("/games/next?difficulty=%g&session_id=%d", difficulty, sessionID)

	var resp nextQuestionResponse
	if err := c.get(ctx, path, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return domain.NextQuestion{}, domain.ErrNoEligibleQuestions
		}
		return domain.NextQuestion{}, err
	}
	if !resp.OK && !resp.Completed && resp.Question == nil && resp.Error != "" {
		return domain.NextQuestion{}, serverError("next question", resp.Error)
	}
	return domain.NextQuestion{
		Question:  resp.Question,
		Completed: resp.Completed,
		Message:   resp.Message,
	}, nil
}

type submitAnswerRequest struct {
	QuestionID       int  `json:"question_id"`
	TimeTaken        int  `json:"time_taken"`
	SelectedOptionID *int `json:"selected_option_id"`
}

type submitAnswerResponse struct {
	OK bool `json:"ok"`
	domain.Verdict
	Error string `json:"error,omitempty"`
}

// SubmitAnswer sends the player's selection (nil on timeout) and the elapsed
// seconds, and returns the backend's verdict. Correctness is never inferred
// locally.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID int, selectedOptionID *int, timeTaken int) (domain.Verdict, error) {
	req := submitAnswerRequest{
		QuestionID:       questionID,
		TimeTaken:        timeTaken,
		SelectedOptionID: selectedOptionID,
	}

	var resp submitAnswerResponse
	if err := c.post(ctx, fmt.Sprintf("/games/%d/answer", sessionID), req, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return domain.Verdict{}, domain.ErrSessionNotFound
		}
		return domain.Verdict{}, err
	}
	if !resp.OK {
		return domain.Verdict{}, serverError("submit answer", resp.Error)
	}
	return resp.Verdict, nil
}

type abandonResponse struct {
	OK         bool   `json:"ok"`
	Status     string `json:"status"`
	FinalScore int    `json:"final_score"`
	Error      string `json:"error,omitempty"`
}

// AbandonSession requests a terminal status for the session. Abandonment is
// not assumed until the backend confirms it.
func (c *Client) AbandonSession(ctx context.Context, sessionID int) (domain.AbandonResult, error) {
	var resp abandonResponse
	if err := c.post(ctx, fmt.Sprintf("/games/%d/abandon", sessionID), struct{}{}, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return domain.AbandonResult{}, domain.ErrSessionNotFound
		}
		return domain.AbandonResult{}, err
	}
	if !resp.OK {
		return domain.AbandonResult{}, serverError("abandon session", resp.Error)
	}
	return domain.AbandonResult{Status: resp.Status, FinalScore: resp.FinalScore}, nil
}

type sessionStatsResponse struct {
	OK bool `json:"ok"`
	domain.SessionStats
	Error string `json:"error,omitempty"`
}

// SessionStats returns the results view for a finished session.
func (c *Client) SessionStats(ctx context.Context, sessionID int) (domain.SessionStats, error) {
	var resp sessionStatsResponse
	if err := c.get(ctx, fmt.Sprintf("/stats/session/%d", sessionID), &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return domain.SessionStats{}, domain.ErrSessionNotFound
		}
		return domain.SessionStats{}, err
	}
	if !resp.OK {
		return domain.SessionStats{}, serverError("session stats", resp.Error)
	}
	return resp.SessionStats, nil
}

type leaderboardResponse struct {
	OK          bool                      `json:"ok"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
	Error       string                    `json:"error,omitempty"`
}

// Leaderboard returns the global top ranking.
func (c *Client) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var resp leaderboardResponse
	if err := c.get(ctx, "/stats/leaderboard", &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, serverError("leaderboard", resp.Error)
	}
	return resp.Leaderboard, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("game api: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("game api: server error (%d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		// 4xx bodies still carry the {ok:false, error} envelope; fall
		// through so the caller surfaces the backend message verbatim.
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("game api: decode response: %w", err)
	}
	return nil
}

func serverError(op, msg string) error {
	if msg == "" {
		msg = "request rejected"
	}
	return fmt.Errorf("game api: %s: %s", op, msg)
}
