package session

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"triviad/internal/domain"
	"triviad/internal/errors"
	"triviad/internal/event"
	"triviad/internal/trivia"
)

const tickPeriod = time.Second

// Fetcher is the trivia provider dependency.
type Fetcher interface {
	Fetch(ctx context.Context, req trivia.FetchRequest) ([]domain.Question, error)
}

type Config struct {
	EventBus *event.Bus
	Trivia   Fetcher
	// NewTickerFunc builds the countdown clock. Defaults to a real
	// time.Ticker; tests inject their own.
	NewTickerFunc func(d time.Duration) Ticker
}

// Service owns the single active session. Every mutation (load, answer,
// submit, tick) is serialized under one lock. Loads bump a generation
// counter; timer ticks carry the generation they were started for, so ticks
// belonging to a superseded session are inert. Starts additionally take a
// sequence number on entry: a fetch completion only loads when no newer
// start has begun in the meantime, whatever order the fetches finish in.
type Service struct {
	eb        *event.Bus
	trivia    Fetcher
	newTicker func(d time.Duration) Ticker

	mu       sync.Mutex
	gen      uint64
	startSeq uint64
	cur      *state
	stop     chan struct{} // closed to end the current generation's timer
}

type state struct {
	questions  []domain.Question
	selections map[string]string
	remaining  int
	submitted  bool
	result     *domain.Result
}

func NewService(c Config) *Service {
	s := &Service{
		eb:        c.EventBus,
		trivia:    c.Trivia,
		newTicker: c.NewTickerFunc,
	}

	if s.newTicker == nil {
		s.newTicker = newRealTicker
	}

	return s
}

// StartRequest is the renderer's session configuration.
type StartRequest struct {
	CategoryID       int
	Difficulty       domain.Difficulty
	Type             domain.QuestionType
	Amount           int
	TimeLimitSeconds int
}

// ConfigureAndStart fetches a fresh batch of questions and loads a brand-new
// session with them. A failed fetch leaves the current session untouched and
// starts no timer. The newest start always wins: once another start begins,
// this one's fetch completion is discarded even if it finishes first.
func (s *Service) ConfigureAndStart(ctx context.Context, req StartRequest) (domain.SessionSnapshot, error) {
	if req.TimeLimitSeconds < 1 {
		return domain.SessionSnapshot{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("time limit must be at least 1 second, got %d", req.TimeLimitSeconds))
	}
	if !req.Difficulty.Valid() {
		return domain.SessionSnapshot{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown difficulty %q", req.Difficulty))
	}
	if !req.Type.Valid() {
		return domain.SessionSnapshot{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown question type %q", req.Type))
	}

	s.mu.Lock()
	s.startSeq++
	mine := s.startSeq
	s.mu.Unlock()

	questions, err := s.trivia.Fetch(ctx, trivia.FetchRequest{
		Amount:     req.Amount,
		CategoryID: req.CategoryID,
		Difficulty: req.Difficulty,
		Type:       req.Type,
	})
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startSeq != mine {
		return domain.SessionSnapshot{}, errors.New(errors.CodeAborted,
			errors.WithMessagef("session was replaced while questions were being fetched"))
	}

	return s.loadLocked(ctx, questions, req.TimeLimitSeconds), nil
}

// Load replaces all prior session state with the given questions and
// (re)starts the countdown. The previous session's timer is stopped first.
func (s *Service) Load(ctx context.Context, questions []domain.Question, timeLimitSeconds int) domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadLocked(ctx, questions, timeLimitSeconds)
}

func (s *Service) loadLocked(ctx context.Context, questions []domain.Question, timeLimitSeconds int) domain.SessionSnapshot {
	s.stopTimerLocked()

	// A direct load supersedes any start whose fetch is still in flight.
	s.startSeq++
	s.gen++
	s.cur = &state{
		questions:  questions,
		selections: make(map[string]string),
		remaining:  timeLimitSeconds,
	}

	stop := make(chan struct{})
	s.stop = stop
	// Create the ticker synchronously so a returned load has always
	// registered its timer; the goroutine only consumes it.
	go s.runTimer(s.gen, stop, s.newTicker(tickPeriod))

	snap := s.snapshotLocked()
	s.eb.Publish(ctx, domain.EventSessionLoaded{Snapshot: snap})
	return snap
}

// SelectAnswer records (or overwrites) the user's answer for a question. A
// submitted session rejects further selections.
func (s *Service) SelectAnswer(ctx context.Context, questionID, answer string) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return domain.SessionSnapshot{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no active session"))
	}
	if s.cur.submitted {
		return domain.SessionSnapshot{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session is already submitted"))
	}
	if !s.hasQuestionLocked(questionID) {
		return domain.SessionSnapshot{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("question not found: %s", questionID))
	}

	s.cur.selections[questionID] = answer

	snap := s.snapshotLocked()
	s.eb.Publish(ctx, domain.EventSessionUpdated{Snapshot: snap})
	return snap, nil
}

// Submit finalizes the session: stops the countdown, scores the selections
// and freezes the state. Submitting twice is an idempotent no-op returning
// the first result unchanged.
func (s *Service) Submit(ctx context.Context) (domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return domain.SessionSnapshot{}, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no active session"))
	}

	if !s.cur.submitted {
		s.submitLocked(ctx)
	}

	return s.snapshotLocked(), nil
}

func (s *Service) submitLocked(ctx context.Context) {
	s.stopTimerLocked()

	score := 0
	for _, q := range s.cur.questions {
		if selected, ok := s.cur.selections[q.QuestionID]; ok && selected == q.CorrectAnswer {
			score++
		}
	}

	total := len(s.cur.questions)
	accuracy := decimal.Zero
	if total > 0 {
		accuracy = decimal.NewFromInt(int64(score)).Div(decimal.NewFromInt(int64(total)))
	}

	s.cur.submitted = true
	s.cur.result = &domain.Result{
		Score:    score,
		Total:    total,
		Accuracy: accuracy,
	}

	s.eb.Publish(ctx, domain.EventSessionSubmitted{Snapshot: s.snapshotLocked()})
}

// Snapshot returns the current session state, or false when no session has
// been loaded yet.
func (s *Service) Snapshot() (domain.SessionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return domain.SessionSnapshot{}, false
	}

	return s.snapshotLocked(), true
}

// Stop ends the active session's timer without submitting. Used on shutdown.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.startSeq++
	s.stopTimerLocked()
}

func (s *Service) runTimer(gen uint64, stop chan struct{}, t Ticker) {
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.tick(gen) {
				return
			}
		}
	}
}

// tick advances the countdown by one second. Reaching zero triggers the one
// auto-submit, with whatever selections exist at that point. Returns false
// once the timer should stop.
func (s *Service) tick(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.cur == nil || s.cur.submitted {
		return false
	}

	if s.cur.remaining > 0 {
		s.cur.remaining--
	}

	if s.cur.remaining == 0 {
		s.submitLocked(context.Background())
		return false
	}

	s.eb.Publish(context.Background(), domain.EventSessionUpdated{Snapshot: s.snapshotLocked()})
	return true
}

func (s *Service) stopTimerLocked() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Service) hasQuestionLocked(questionID string) bool {
	for _, q := range s.cur.questions {
		if q.QuestionID == questionID {
			return true
		}
	}
	return false
}

func (s *Service) snapshotLocked() domain.SessionSnapshot {
	selections := make(map[string]string, len(s.cur.selections))
	for id, answer := range s.cur.selections {
		selections[id] = answer
	}

	snap := domain.SessionSnapshot{
		Questions:            s.cur.questions,
		Selections:           selections,
		TimeRemainingSeconds: s.cur.remaining,
		Submitted:            s.cur.submitted,
		AllAnswered:          len(s.cur.selections) == len(s.cur.questions),
	}

	if s.cur.result != nil {
		r := *s.cur.result
		snap.Result = &r
	}

	return snap
}
