package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"monster-quiz-engine/internal/domain"
	"monster-quiz-engine/internal/progress"
	"monster-quiz-engine/internal/ranking"
	"monster-quiz-engine/internal/storage"
)

// AnswerResult is everything the client needs to render after one answer.
type AnswerResult struct {
	Correct         bool                         `json:"correct"`
	LevelUp         *domain.LevelUpResult        `json:"levelUp,omitempty"`
	Progress        domain.UserProgress          `json:"progress"`
	NextLevel       domain.LevelProgress         `json:"nextLevel"`
	Combo           domain.ComboState            `json:"combo"`
	ComboBonus      *domain.ComboBonus           `json:"comboBonus,omitempty"`
	NewAchievements []domain.Achievement         `json:"newAchievements"`
	Notifications   []domain.RankingNotification `json:"notifications"`
}

// GameService wires the per-player progress ledgers to the shared leaderboard.
// Ledgers and the ranking store are single-actor components, so every call
// goes through one mutex.
type GameService struct {
	kv       storage.KV
	rankings *ranking.Store
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	mu          sync.Mutex
	players     map[string]*player
	subscribers map[chan domain.RankingEvent]struct{}
}

type player struct {
	ledger   *progress.Ledger
	joins    int
	active   *domain.GameSession
	startExp int
	monsters map[string]struct{}
}

// Option configures a GameService.
type Option func(*GameService)

// WithClock is test-only for deterministic timestamps; it is passed down to
// every ledger and the ranking store.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

// WithLogger sets the logger shared by the service and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(s *GameService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator replaces uuid generation for session ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *GameService) { s.newID = fn }
}

// NewGameService loads the shared leaderboard from kv. Player ledgers are
// loaded lazily on first use.
func NewGameService(ctx context.Context, kv storage.KV, opts ...Option) (*GameService, error) {
	s := &GameService{
		kv:          kv,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      slog.Default(),
		players:     make(map[string]*player),
		subscribers: make(map[chan domain.RankingEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	store, err := ranking.NewStore(ctx,
		storage.NewRepository(kv, storage.WithLogger(s.logger)),
		ranking.WithClock(s.now),
		ranking.WithLogger(s.logger.With(slog.String("component", "ranking"))))
	if err != nil {
		return nil, err
	}
	s.rankings = store
	return s, nil
}

// Join loads (or returns the already loaded) ledger for name and reports its
// stats. Every Join must be paired with a Leave.
func (s *GameService) Join(ctx context.Context, name string) (domain.ProgressStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.ProgressStats{}, err
	}
	p.joins++
	return p.ledger.GetProgressStats(), nil
}

// Leave releases one Join. When the last connection of the player leaves, an
// open session is closed and persisted and the in-memory state is dropped.
func (s *GameService) Leave(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[name]
	if !ok {
		return nil
	}
	if p.joins > 1 {
		p.joins--
		return nil
	}
	var err error
	if p.active != nil {
		_, _, err = s.endSessionLocked(ctx, name, p)
	}
	delete(s.players, name)
	return err
}

// SubmitAnswer records one answer. On a correct answer the player's snapshot
// is submitted to the leaderboard and subscribers receive a ranking event.
// A returned error wrapping domain.ErrPersistence accompanies a valid result.
func (s *GameService) SubmitAnswer(ctx context.Context, name string, answer domain.AnswerSubmission) (AnswerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return AnswerResult{}, err
	}

	before := make(map[string]struct{})
	for _, id := range p.ledger.Progress().Achievements {
		before[id] = struct{}{}
	}

	levelUp, persistErr := p.ledger.UpdateProgress(ctx, answer.Correct, answer.ContentType)

	if p.active != nil {
		p.active.Answers = append(p.active.Answers, domain.GameAnswer{
			QuestionID:  answer.QuestionID,
			ContentType: answer.ContentType,
			Correct:     answer.Correct,
			AnsweredAt:  s.now(),
		})
		// Monsters only persist through the session log, so they count only
		// inside an open session.
		if answer.Correct && answer.MonsterID != "" {
			p.active.MonstersUnlocked = append(p.active.MonstersUnlocked, answer.MonsterID)
			p.monsters[answer.MonsterID] = struct{}{}
		}
	}

	result := AnswerResult{
		Correct:         answer.Correct,
		LevelUp:         levelUp,
		Progress:        p.ledger.Progress(),
		NextLevel:       p.ledger.GetExperienceForNextLevel(),
		Combo:           p.ledger.GetComboState(),
		ComboBonus:      p.ledger.GetComboBonus(),
		NewAchievements: []domain.Achievement{},
		Notifications:   []domain.RankingNotification{},
	}
	for _, a := range p.ledger.GetAchievementProgress().Recent {
		if _, ok := before[a.ID]; !ok {
			result.NewAchievements = append(result.NewAchievements, a)
		}
	}

	if answer.Correct {
		notes, err := s.submitLocked(ctx, name, p)
		result.Notifications = append(result.Notifications, notes...)
		persistErr = errors.Join(persistErr, err)
	}
	return result, persistErr
}

// StartSession opens a play session for the player. A session that is still
// open is closed first.
func (s *GameService) StartSession(ctx context.Context, name string, questionIDs []string) (domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.GameSession{}, err
	}
	var closeErr error
	if p.active != nil {
		_, _, closeErr = s.endSessionLocked(ctx, name, p)
	}

	p.active = &domain.GameSession{
		ID:               s.newID(),
		StartTime:        s.now(),
		Questions:        append([]string{}, questionIDs...),
		Answers:          []domain.GameAnswer{},
		MonstersUnlocked: []string{},
	}
	p.startExp = p.ledger.Progress().Experience
	s.logger.Info("session started", slog.String("player", name), slog.String("session_id", p.active.ID))
	return *p.active, closeErr
}

// EndSession closes the open session, appends it to the session log and
// submits the final snapshot to the leaderboard.
func (s *GameService) EndSession(ctx context.Context, name string) (domain.GameSession, []domain.RankingNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[name]
	if !ok {
		return domain.GameSession{}, nil, domain.ErrSessionNotFound
	}
	if p.active == nil {
		return domain.GameSession{}, nil, domain.ErrNoActiveSession
	}
	return s.endSessionLocked(ctx, name, p)
}

// UpdateSettings applies a partial settings change for the player.
func (s *GameService) UpdateSettings(ctx context.Context, name string, patch domain.SettingsPatch) (domain.GameSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.GameSettings{}, err
	}
	return p.ledger.UpdateSettings(ctx, patch)
}

// Settings returns the player's current settings.
func (s *GameService) Settings(ctx context.Context, name string) (domain.GameSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.GameSettings{}, err
	}
	return p.ledger.GetSettings(), nil
}

// Stats returns the player's progress statistics.
func (s *GameService) Stats(ctx context.Context, name string) (domain.ProgressStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.ProgressStats{}, err
	}
	return p.ledger.GetProgressStats(), nil
}

// Achievements returns the player's achievement summary.
func (s *GameService) Achievements(ctx context.Context, name string) (domain.AchievementProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return domain.AchievementProgress{}, err
	}
	return p.ledger.GetAchievementProgress(), nil
}

// RecentSessions returns up to n of the player's sessions, newest first.
func (s *GameService) RecentSessions(ctx context.Context, name string, n int) ([]domain.GameSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.ledger.GetRecentSessions(n)
}

// ResetProgress wipes the player's progress. The leaderboard keeps its entries.
func (s *GameService) ResetProgress(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getOrLoadLocked(ctx, name)
	if err != nil {
		return err
	}
	return p.ledger.ResetProgress(ctx)
}

// Rankings returns the pruned leaderboard windows.
func (s *GameService) Rankings(ctx context.Context) (domain.RankingData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankings.GetRankings(ctx)
}

// PlayerRank returns the player's 1-based rank in category, 0 when unranked.
func (s *GameService) PlayerRank(ctx context.Context, name string, category domain.Category) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankings.GetPlayerRank(ctx, name, category)
}

// ExportRankingsJSON returns the full leaderboard export.
func (s *GameService) ExportRankingsJSON(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankings.ExportRankingData(ctx)
}

// ExportRankingsCSV renders one leaderboard window as CSV.
func (s *GameService) ExportRankingsCSV(ctx context.Context, category domain.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankings.ExportRankingCSV(ctx, category)
}

// Subscribe returns a channel of ranking events, starting with the current
// leaderboard. The caller must invoke the returned cancel function.
func (s *GameService) Subscribe(ctx context.Context) (<-chan domain.RankingEvent, func(), error) {
	ch := make(chan domain.RankingEvent, 8)

	s.mu.Lock()
	data, err := s.rankings.GetRankings(ctx)
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		s.unsubscribe(ch)
		return nil, nil, err
	}

	ch <- domain.RankingEvent{Notifications: []domain.RankingNotification{}, Rankings: data}

	return ch, func() { s.unsubscribe(ch) }, nil
}

func (s *GameService) unsubscribe(ch chan domain.RankingEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *GameService) getOrLoadLocked(ctx context.Context, name string) (*player, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty player name", domain.ErrInvalidInput)
	}
	if p, ok := s.players[name]; ok {
		return p, nil
	}

	logger := s.logger.With(slog.String("player", name))
	repo := storage.NewRepository(s.kv, storage.WithNamespace(name), storage.WithLogger(logger))
	ledger, err := progress.NewLedger(ctx, repo, progress.WithClock(s.now), progress.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", name, err)
	}

	p := &player{ledger: ledger, monsters: make(map[string]struct{})}
	sessions, err := ledger.GetRecentSessions(ledger.GetProgressStats().SessionsPlayed)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		for _, id := range session.MonstersUnlocked {
			p.monsters[id] = struct{}{}
		}
	}
	s.players[name] = p
	logger.Info("player loaded", slog.Int("level", ledger.Progress().Level))
	return p, nil
}

func (s *GameService) endSessionLocked(ctx context.Context, name string, p *player) (domain.GameSession, []domain.RankingNotification, error) {
	session := *p.active
	end := s.now()
	session.EndTime = &end
	if gained := p.ledger.Progress().Experience - p.startExp; gained > 0 {
		session.Score = gained
	}
	p.active = nil

	saveErr := p.ledger.SaveGameSession(ctx, session)
	notes, submitErr := s.submitLocked(ctx, name, p)
	s.logger.Info("session ended",
		slog.String("player", name),
		slog.String("session_id", session.ID),
		slog.Int("answers", len(session.Answers)),
		slog.Int("score", session.Score))
	return session, notes, errors.Join(saveErr, submitErr)
}

// submitLocked sends the player's snapshot to the leaderboard and fans the
// result out to subscribers.
func (s *GameService) submitLocked(ctx context.Context, name string, p *player) ([]domain.RankingNotification, error) {
	notes, err := s.rankings.SubmitScore(ctx, name, p.ledger.Progress(), len(p.monsters))
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return nil, err
	}
	if notes == nil {
		notes = []domain.RankingNotification{}
	}
	data, rerr := s.rankings.GetRankings(ctx)
	s.broadcastLocked(domain.RankingEvent{PlayerName: name, Notifications: notes, Rankings: data})
	return notes, errors.Join(err, rerr)
}

func (s *GameService) broadcastLocked(event domain.RankingEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow reader never blocks play.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
