package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trivia-client/internal/domain"
)

// Backend abstracts the remote game API the orchestrator plays against.
// The backend owns correctness of scoring, lives and difficulty; the
// orchestrator applies its verdicts and never second-guesses them.
type Backend interface {
	StartSession(ctx context.Context, playerID int, startDifficulty float64, roomCode string) (domain.StartedSession, error)
	NextQuestion(ctx context.Context, sessionID int, difficulty float64) (domain.NextQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID int, selectedOptionID *int, timeTaken int) (domain.Verdict, error)
	AbandonSession(ctx context.Context, sessionID int) (domain.AbandonResult, error)
}

// IdentityStore yields the player identity persisted by the entry flow.
type IdentityStore interface {
	Load(ctx context.Context) (domain.Identity, error)
}

// Recorder archives terminal session outcomes. Implementations must be safe
// to skip; recording is best-effort and never blocks a transition.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome domain.SessionOutcome) error
}

// Config tunes one orchestrator instance.
type Config struct {
	QuestionSeconds int
	Lives           int
	StartDifficulty float64
	MaxQuestions    int
	// TickInterval is how often the countdown decrements. It exists so tests
	// can run the timer deterministically; production uses one second.
	TickInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = 30
	}
	if c.Lives <= 0 {
		c.Lives = 3
	}
	if c.StartDifficulty <= 0 {
		c.StartDifficulty = 1.0
	}
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = 15
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return c
}

// Snapshot is the read-only projection handed to the presentation layer.
type Snapshot struct {
	State            domain.State      `json:"state"`
	PlayerName       string            `json:"playerName"`
	SessionID        int               `json:"sessionId"`
	Room             *domain.Room      `json:"room,omitempty"`
	Question         *domain.Question  `json:"question,omitempty"`
	SelectedOptionID *int              `json:"selectedOptionId,omitempty"`
	RemainingSeconds int               `json:"remainingSeconds"`
	Score            int               `json:"score"`
	Lives            int               `json:"lives"`
	Difficulty       float64           `json:"difficulty"`
	QuestionCount    int               `json:"questionCount"`
	MaxQuestions     int               `json:"maxQuestions"`
	LockedLevels     []int             `json:"lockedLevels,omitempty"`
	LastQuestion     bool              `json:"lastQuestion"`
	AbandonPrompt    bool              `json:"abandonPrompt"`
	Feedback         *domain.Verdict  `json:"feedback,omitempty"`
	Notice           *domain.Notice   `json:"notice,omitempty"`
}

// Orchestrator owns the lifecycle of one play-through: session start,
// per-question countdown, exactly-once answer submission, verdict
// application and termination. All state is mutated under one mutex and only
// through the transition methods below; the presentation layer observes
// snapshots and issues intents, never writes.
type Orchestrator struct {
	backend  Backend
	identity IdentityStore
	recorder Recorder
	cfg      Config

	mu            sync.Mutex
	started       bool
	closed        bool
	state         domain.State
	player        domain.Identity
	sessionID     int
	room          *domain.Room
	difficulty    float64
	score         int
	lives         int
	questionCount int
	maxQuestions  int
	lockedLevels  []int
	question      *domain.Question
	selected      *int
	remaining     int
	feedback      *domain.Verdict
	lastQuestion  bool
	abandonPrompt bool
	fetching      bool
	notice        *domain.Notice
	startedAt     time.Time

	// timerGen invalidates outstanding countdowns: every start or stop bumps
	// it, and a tick whose generation no longer matches is discarded. A
	// stopped timer can therefore never fire into a later question.
	timerGen uint64

	subscribers map[chan Snapshot]struct{}
}

// New builds an orchestrator. recorder may be nil.
func New(backend Backend, identity IdentityStore, recorder Recorder, cfg Config) *Orchestrator {
	return &Orchestrator{
		backend:     backend,
		identity:    identity,
		recorder:    recorder,
		cfg:         cfg.withDefaults(),
		state:       domain.StateLoading,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Start reads the stored identity, opens a session and fetches the first
// question. A missing identity or a failed session start is terminal for
// this attempt; the caller routes the player back to the entry flow.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return nil
	}
	o.started = true
	o.mu.Unlock()

	player, err := o.identity.Load(ctx)
	if err != nil {
		return err
	}
	if player.PlayerID == 0 {
		return domain.ErrMissingIdentity
	}

	started, err := o.backend.StartSession(ctx, player.PlayerID, o.cfg.StartDifficulty, player.RoomCode)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	o.mu.Lock()
	o.player = player
	o.sessionID = started.SessionID
	o.difficulty = started.CurrentDifficulty
	o.room = started.Room
	o.score = 0
	o.lives = o.cfg.Lives
	o.maxQuestions = o.cfg.MaxQuestions
	o.startedAt = time.Now()
	if started.Room != nil {
		o.notice = domain.InfoNotice("joined room " + started.Room.Code)
	}
	o.mu.Unlock()

	return o.fetchNext(ctx)
}

// SelectOption records the player's current choice. Ignored outside the
// playing state so a late click cannot disturb a submission in flight.
func (o *Orchestrator) SelectOption(optionID int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != domain.StatePlaying || o.question == nil {
		return
	}
	for _, opt := range o.question.Options {
		if opt.ID == optionID {
			id := optionID
			o.selected = &id
			o.broadcastLocked()
			return
		}
	}
}

// Submit sends the current selection for judgement. It is a no-op unless the
// session is in the playing state, which makes the manual path and the
// timer-expiry path mutually exclusive: whichever moves the state to
// submitting first wins, and the other finds the guard closed.
func (o *Orchestrator) Submit(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StatePlaying || o.question == nil {
		o.mu.Unlock()
		return nil
	}
	if o.selected == nil {
		o.notice = domain.WarningNotice("select an option before submitting")
		o.broadcastLocked()
		o.mu.Unlock()
		return nil
	}
	req := o.beginSubmitLocked()
	o.broadcastLocked()
	o.mu.Unlock()

	return o.finishSubmit(ctx, req)
}

// Advance moves past the feedback screen: to game over when lives are gone,
// to the results when the question cap is reached, otherwise to the next
// question. The player always sees feedback for the losing question before
// the session ends.
func (o *Orchestrator) Advance(ctx context.Context) error {
	o.mu.Lock()
	if o.state != domain.StateFeedback {
		o.mu.Unlock()
		return nil
	}
	if o.lives <= 0 {
		o.stopTimerLocked()
		o.state = domain.StateGameOver
		outcome := o.outcomeLocked()
		o.broadcastLocked()
		o.mu.Unlock()
		o.record(outcome)
		return nil
	}
	if o.lastQuestion {
		o.stopTimerLocked()
		o.state = domain.StateCompleted
		o.notice = domain.SuccessNotice("session complete")
		outcome := o.outcomeLocked()
		o.broadcastLocked()
		o.mu.Unlock()
		o.record(outcome)
		return nil
	}
	o.mu.Unlock()
	return o.fetchNext(ctx)
}

// Reload retries a failed question fetch. Valid only while loading with no
// request outstanding.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	ok := o.started && o.state == domain.StateLoading && !o.fetching
	o.mu.Unlock()
	if !ok {
		return nil
	}
	return o.fetchNext(ctx)
}

// OpenAbandonPrompt asks for confirmation before abandoning. The countdown
// keeps running underneath; expiry may still auto-submit.
func (o *Orchestrator) OpenAbandonPrompt() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != domain.StatePlaying && o.state != domain.StateFeedback {
		return
	}
	o.abandonPrompt = true
	o.broadcastLocked()
}

// CancelAbandon dismisses the prompt without any network call.
func (o *Orchestrator) CancelAbandon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.abandonPrompt {
		return
	}
	o.abandonPrompt = false
	o.broadcastLocked()
}

// ConfirmAbandon requests a terminal status from the backend. The session
// stays live until the backend confirms; a failure leaves everything
// unchanged apart from an error notice.
func (o *Orchestrator) ConfirmAbandon(ctx context.Context) error {
	o.mu.Lock()
	if !o.abandonPrompt || o.state.Terminal() {
		o.mu.Unlock()
		return nil
	}
	o.abandonPrompt = false
	sessionID := o.sessionID
	o.broadcastLocked()
	o.mu.Unlock()

	result, err := o.backend.AbandonSession(ctx, sessionID)
	o.mu.Lock()
	if err != nil {
		o.notice = domain.ErrorNotice("could not abandon the session, it is still active")
		o.broadcastLocked()
		o.mu.Unlock()
		return nil
	}
	o.stopTimerLocked()
	o.state = domain.StateAbandoned
	if result.FinalScore > 0 {
		o.score = result.FinalScore
	}
	o.notice = domain.WarningNotice("session abandoned")
	outcome := o.outcomeLocked()
	o.broadcastLocked()
	o.mu.Unlock()
	o.record(outcome)
	return nil
}

// Subscribe returns a channel receiving a snapshot on every transition,
// seeded with the current one. The caller must invoke cancel to avoid leaks.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	o.subscribers[ch] = struct{}{}
	initial := o.snapshotLocked()
	o.mu.Unlock()

	ch <- initial

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subscribers[ch]; ok {
			delete(o.subscribers, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the current projection.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Close stops the countdown and releases subscribers. Safe to call from any
// state and more than once.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.stopTimerLocked()
	for ch := range o.subscribers {
		close(ch)
	}
	o.subscribers = nil
}

// fetchNext loads the next question and resolves the three-way outcome:
// question present, explicitly completed, or content exhausted.
func (o *Orchestrator) fetchNext(ctx context.Context) error {
	o.mu.Lock()
	if o.fetching || o.closed {
		o.mu.Unlock()
		return nil
	}
	o.fetching = true
	o.stopTimerLocked()
	o.state = domain.StateLoading
	o.selected = nil
	o.feedback = nil
	sessionID, difficulty := o.sessionID, o.difficulty
	o.broadcastLocked()
	o.mu.Unlock()

	next, err := o.backend.NextQuestion(ctx, sessionID, difficulty)

	o.mu.Lock()
	o.fetching = false
	if o.closed || o.state != domain.StateLoading {
		o.mu.Unlock()
		return nil
	}

	switch {
	case err == domain.ErrNoEligibleQuestions:
		o.finishExhaustedLocked("no verified questions are available for this session")
	case err != nil:
		// Transient failure: stay in loading so the player can retry.
		o.notice = domain.ErrorNotice("could not load the next question")
		o.broadcastLocked()
		o.mu.Unlock()
		return nil
	case next.Question != nil:
		o.question = next.Question
		if p := next.Question.Progress; p != nil {
			if p.MaxQuestions > 0 {
				o.maxQuestions = p.MaxQuestions
			}
			o.questionCount = p.TotalAnswered
			o.lockedLevels = p.LockedLevels
		}
		o.state = domain.StatePlaying
		o.startTimerLocked()
		o.broadcastLocked()
		o.mu.Unlock()
		return nil
	case next.Completed && o.questionCount == 0:
		// Nothing was ever eligible: this is not a congratulation.
		o.stopTimerLocked()
		o.state = domain.StateNoQuestions
		o.notice = domain.WarningNotice("no questions are available right now")
	case next.Completed:
		o.stopTimerLocked()
		o.state = domain.StateCompleted
		msg := next.Message
		if msg == "" {
			msg = "you answered every available question"
		}
		o.notice = domain.SuccessNotice(msg)
	default:
		o.finishExhaustedLocked("no more questions are available")
	}

	outcome := o.outcomeLocked()
	o.broadcastLocked()
	o.mu.Unlock()
	o.record(outcome)
	return nil
}

// finishExhaustedLocked ends the session when content runs out. A session in
// which nothing was ever answered is reported as having no questions rather
// than as a completion.
func (o *Orchestrator) finishExhaustedLocked(msg string) {
	o.stopTimerLocked()
	if o.questionCount == 0 {
		o.state = domain.StateNoQuestions
	} else {
		o.state = domain.StateCompleted
	}
	o.notice = domain.WarningNotice(msg)
}

type submitRequest struct {
	sessionID  int
	questionID int
	selected   *int
	timeTaken  int
}

// beginSubmitLocked closes the submission guard: the timer is stopped first,
// then the state moves to submitting so no second submission can begin.
func (o *Orchestrator) beginSubmitLocked() submitRequest {
	o.stopTimerLocked()
	o.state = domain.StateSubmitting
	return submitRequest{
		sessionID:  o.sessionID,
		questionID: o.question.ID,
		selected:   o.selected,
		timeTaken:  o.cfg.QuestionSeconds - o.remaining,
	}
}

// finishSubmit applies the verdict, or rolls the session back to playing
// with a fresh full-budget countdown when the call fails. Failure mutates
// nothing: score, lives, difficulty and the question count stay as they
// were before the call.
func (o *Orchestrator) finishSubmit(ctx context.Context, req submitRequest) error {
	verdict, err := o.backend.SubmitAnswer(ctx, req.sessionID, req.questionID, req.selected, req.timeTaken)

	o.mu.Lock()
	if o.closed || o.state != domain.StateSubmitting {
		o.mu.Unlock()
		return nil
	}

	if err != nil {
		o.state = domain.StatePlaying
		o.notice = domain.ErrorNotice("your answer could not be submitted, try again")
		o.startTimerLocked()
		o.broadcastLocked()
		o.mu.Unlock()
		return nil
	}

	o.score = verdict.Score
	o.lives = verdict.Lives
	o.difficulty = verdict.NextDifficulty
	o.feedback = &verdict
	o.questionCount++
	if o.maxQuestions > 0 && o.questionCount >= o.maxQuestions {
		o.lastQuestion = true
	}
	o.state = domain.StateFeedback
	o.broadcastLocked()
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) outcomeLocked() domain.SessionOutcome {
	return domain.SessionOutcome{
		SessionID:         o.sessionID,
		PlayerID:          o.player.PlayerID,
		Outcome:           o.state,
		Score:             o.score,
		QuestionsAnswered: o.questionCount,
		Difficulty:        o.difficulty,
		StartedAt:         o.startedAt,
		FinishedAt:        time.Now(),
	}
}

func (o *Orchestrator) record(outcome domain.SessionOutcome) {
	if o.recorder == nil || !outcome.Outcome.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.recorder.RecordOutcome(ctx, outcome); err != nil {
		log.Printf("record session outcome: %v", err)
	}
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:            o.state,
		PlayerName:       o.player.DisplayName,
		SessionID:        o.sessionID,
		Room:             o.room,
		Question:         o.question,
		SelectedOptionID: o.selected,
		RemainingSeconds: o.remaining,
		Score:            o.score,
		Lives:            o.lives,
		Difficulty:       o.difficulty,
		QuestionCount:    o.questionCount,
		MaxQuestions:     o.maxQuestions,
		LockedLevels:     o.lockedLevels,
		LastQuestion:     o.lastQuestion,
		AbandonPrompt:    o.abandonPrompt,
		Feedback:         o.feedback,
		Notice:           o.notice,
	}
	// Notices are one-shot toasts: deliver once, then clear.
	o.notice = nil
	return snap
}

func (o *Orchestrator) broadcastLocked() {
	snap := o.snapshotLocked()
	for ch := range o.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stalest update so a slow consumer never blocks a
			// transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
