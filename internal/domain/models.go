package domain

import "time"

// State is the discrete game state of one session. Exactly one value holds
// at any time; it governs which intents are accepted.
type State string

const (
	StateLoading     State = "loading"
	StatePlaying     State = "playing"
	StateSubmitting  State = "submitting"
	StateFeedback    State = "feedback"
	StateGameOver    State = "gameover"
	StateCompleted   State = "completed"
	StateNoQuestions State = "no_questions"
	StateAbandoned   State = "abandoned"
)

// Terminal reports whether the session can make no further progress.
func (s State) Terminal() bool {
	switch s {
	case StateGameOver, StateCompleted, StateNoQuestions, StateAbandoned:
		return true
	}
	return false
}

// Identity is the persisted player identity written by the upstream entry
// flow and read once when a session is created.
type Identity struct {
	PlayerID    int    `json:"playerId"`
	DisplayName string `json:"displayName"`
	RoomCode    string `json:"roomCode,omitempty"`
}

// Room scopes which questions are eligible for a session joined by code.
type Room struct {
	ID                 int    `json:"id"`
	Code               string `json:"room_code"`
	Name               string `json:"name"`
	FilterCategories   []int  `json:"filter_categories,omitempty"`
	FilterDifficulties []int  `json:"filter_difficulties,omitempty"`
}

// Option is one possible answer for a question.
type Option struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Progress is per-session metadata the backend attaches to questions.
type Progress struct {
	TotalAnswered int   `json:"total_answered"`
	MaxQuestions  int   `json:"max_questions"`
	LockedLevels  []int `json:"locked_levels,omitempty"`
}

// Question is the question currently in play. Instances are replaced
// wholesale when the next question is fetched, never mutated.
type Question struct {
	ID         int       `json:"id"`
	Statement  string    `json:"statement"`
	Difficulty float64   `json:"difficulty"`
	Options    []Option  `json:"options"`
	Progress   *Progress `json:"progress,omitempty"`
}

// Verdict is the backend's judgement of one submitted answer. The client
// never computes correctness; it applies these fields verbatim.
type Verdict struct {
	IsCorrect       bool    `json:"is_correct"`
	Score           int     `json:"score"`
	Lives           int     `json:"lives"`
	NextDifficulty  float64 `json:"next_difficulty"`
	CorrectOptionID int     `json:"correct_option_id"`
	Explanation     string  `json:"explanation,omitempty"`
	Status          string  `json:"status,omitempty"`
}

// StartedSession is the backend's reply to a session-start request.
type StartedSession struct {
	SessionID         int     `json:"session_id"`
	CurrentDifficulty float64 `json:"current_difficulty"`
	Status            string  `json:"status"`
	Room              *Room   `json:"room,omitempty"`
}

// NextQuestion is the three-way outcome of a next-question request:
// a question is present, the session is explicitly completed, or neither
// (content exhausted mid-session).
type NextQuestion struct {
	Question  *Question `json:"question,omitempty"`
	Completed bool      `json:"completed,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// AbandonResult confirms a voluntary abandonment.
type AbandonResult struct {
	Status     string `json:"status"`
	FinalScore int    `json:"final_score"`
}

// SessionStats is the read-only results view for a finished session.
type SessionStats struct {
	SessionID         int     `json:"session_id"`
	Score             int     `json:"score"`
	QuestionsAnswered int     `json:"questions_answered"`
	CorrectAnswers    int     `json:"correct_answers"`
	FinalDifficulty   float64 `json:"final_difficulty"`
	Status            string  `json:"status"`
}

// LeaderboardEntry is one row of the global player ranking.
type LeaderboardEntry struct {
	PlayerName string `json:"player_name"`
	HighScore  int    `json:"high_score"`
	Rank       int    `json:"rank"`
}

// SessionOutcome is the archived record of one finished play-through.
type SessionOutcome struct {
	SessionID         int
	PlayerID          int
	Outcome           State
	Score             int
	QuestionsAnswered int
	Difficulty        float64
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Notice is a presentation-facing message attached to a state snapshot.
type Notice struct {
	Level   string `json:"level"` // info, success, warning, error
	Message string `json:"message"`
}

func InfoNotice(msg string) *Notice    { return &Notice{Level: "info", Message: msg} }
func SuccessNotice(msg string) *Notice { return &Notice{Level: "success", Message: msg} }
func WarningNotice(msg string) *Notice { return &Notice{Level: "warning", Message: msg} }
func ErrorNotice(msg string) *Notice   { return &Notice{Level: "error", Message: msg} }
