package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"monster-quiz-engine/internal/domain"
)

// MaxEntries caps every window.
const MaxEntries = 100

// weeklyWindow is measured as wall-clock age, not calendar weeks.
const weeklyWindow = 7 * 24 * time.Hour

// Repository is the slice of the persistence port the store needs.
type Repository interface {
	LoadRankings(ctx context.Context) (domain.RankingData, error)
	SaveRankings(ctx context.Context, data domain.RankingData) error
}

// Store keeps the daily, weekly and all-time leaderboards. Each window holds
// at most one entry per player name (exact, case-sensitive match), sorted by
// score descending and capped at MaxEntries.
//
// Like the progress ledger, Store assumes a single caller at a time.
type Store struct {
	repo       Repository
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
	maxEntries int

	data domain.RankingData
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now; every "now" read in the store goes through it.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator replaces the uuid generator for entry ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithMaxEntries overrides the per-window cap.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// NewStore loads persisted rankings. A malformed blob yields empty rankings.
func NewStore(ctx context.Context, repo Repository, opts ...Option) (*Store, error) {
	s := &Store{
		repo:       repo,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     slog.Default(),
		maxEntries: MaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := repo.LoadRankings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rankings: %w", err)
	}
	s.data = data
	for _, c := range domain.Categories() {
		list := s.list(c)
		s.sortEntries(list)
		s.setList(c, s.truncate(*list))
	}
	return s, nil
}

// SubmitScore records the player's current snapshot in all three windows and
// returns one notification per window where the player's rank improved.
// Notifications are returned even when persisting fails; the error then wraps
// domain.ErrPersistence.
func (s *Store) SubmitScore(ctx context.Context, playerName string, progress domain.UserProgress, monstersCollected int) ([]domain.RankingNotification, error) {
	if playerName == "" {
		return nil, fmt.Errorf("%w: empty player name", domain.ErrInvalidInput)
	}
	if monstersCollected < 0 || progress.CorrectAnswers < 0 || progress.TotalQuestions < 0 {
		return nil, fmt.Errorf("%w: negative counts for %s", domain.ErrInvalidInput, playerName)
	}

	now := s.now()
	s.prune(now)

	entry := domain.RankingEntry{
		PlayerName:        playerName,
		Score:             Score(progress, monstersCollected),
		Level:             progress.Level,
		CorrectAnswers:    progress.CorrectAnswers,
		TotalQuestions:    progress.TotalQuestions,
		Accuracy:          progress.Accuracy(),
		MonstersCollected: monstersCollected,
		DateAchieved:      now,
	}

	var notifications []domain.RankingNotification
	for _, c := range domain.Categories() {
		list := s.list(c)
		previous := rankOf(*list, playerName)

		updated := s.upsert(*list, entry)
		s.sortEntries(&updated)
		updated = s.truncate(updated)
		s.setList(c, updated)

		current := rankOf(updated, playerName)
		if n, ok := notificationFor(c, playerName, previous, current); ok {
			notifications = append(notifications, n)
		}
	}
	s.data.LastUpdated = now

	s.logger.Debug("score submitted",
		slog.String("player", playerName),
		slog.Int("score", entry.Score),
		slog.Int("notifications", len(notifications)))

	if err := s.repo.SaveRankings(ctx, s.data); err != nil {
		s.logger.Error("save rankings failed", slog.Any("error", err))
		return notifications, err
	}
	return notifications, nil
}

// GetRankings returns the pruned windows. Pruning is persisted when it removed
// anything; a failed write is reported alongside the valid data.
func (s *Store) GetRankings(ctx context.Context) (domain.RankingData, error) {
	err := s.pruneAndPersist(ctx)
	return s.data.Clone(), err
}

// GetPlayerRank returns the 1-based rank of playerName in category, or 0.
func (s *Store) GetPlayerRank(ctx context.Context, playerName string, category domain.Category) (int, error) {
	if _, err := s.data.Entries(category); err != nil {
		return 0, err
	}
	err := s.pruneAndPersist(ctx)
	entries, _ := s.data.Entries(category)
	return rankOf(entries, playerName), err
}

func (s *Store) pruneAndPersist(ctx context.Context) error {
	if !s.prune(s.now()) {
		return nil
	}
	if err := s.repo.SaveRankings(ctx, s.data); err != nil {
		s.logger.Error("save pruned rankings failed", slog.Any("error", err))
		return err
	}
	return nil
}

// prune drops daily entries from another calendar day and weekly entries older
// than seven days. It reports whether anything was removed.
func (s *Store) prune(now time.Time) bool {
	daily := filter(s.data.DailyRankings, func(e domain.RankingEntry) bool {
		return sameDay(e.DateAchieved.In(now.Location()), now)
	})
	weekly := filter(s.data.WeeklyRankings, func(e domain.RankingEntry) bool {
		return now.Sub(e.DateAchieved) <= weeklyWindow
	})
	changed := len(daily) != len(s.data.DailyRankings) || len(weekly) != len(s.data.WeeklyRankings)
	s.data.DailyRankings = daily
	s.data.WeeklyRankings = weekly
	return changed
}

func (s *Store) list(c domain.Category) *[]domain.RankingEntry {
	switch c {
	case domain.CategoryDaily:
		return &s.data.DailyRankings
	case domain.CategoryWeekly:
		return &s.data.WeeklyRankings
	default:
		return &s.data.AllTimeRankings
	}
}

func (s *Store) setList(c domain.Category, entries []domain.RankingEntry) {
	*s.list(c) = entries
}

// upsert replaces the player's entry (keeping its id) or appends a new one.
func (s *Store) upsert(entries []domain.RankingEntry, entry domain.RankingEntry) []domain.RankingEntry {
	out := make([]domain.RankingEntry, 0, len(entries)+1)
	found := false
	for _, e := range entries {
		if e.PlayerName == entry.PlayerName {
			if found {
				continue
			}
			entry.ID = e.ID
			out = append(out, entry)
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		entry.ID = s.newID()
		out = append(out, entry)
	}
	return out
}

// sortEntries orders by score desc, then whoever reached the score first, then name.
func (s *Store) sortEntries(entries *[]domain.RankingEntry) {
	list := *entries
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if !list[i].DateAchieved.Equal(list[j].DateAchieved) {
			return list[i].DateAchieved.Before(list[j].DateAchieved)
		}
		return list[i].PlayerName < list[j].PlayerName
	})
}

func (s *Store) truncate(entries []domain.RankingEntry) []domain.RankingEntry {
	if len(entries) > s.maxEntries {
		return entries[:s.maxEntries]
	}
	return entries
}

func rankOf(entries []domain.RankingEntry, playerName string) int {
	for i, e := range entries {
		if e.PlayerName == playerName {
			return i + 1
		}
	}
	return 0
}

func filter(entries []domain.RankingEntry, keep func(domain.RankingEntry) bool) []domain.RankingEntry {
	out := make([]domain.RankingEntry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
