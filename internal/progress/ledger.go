package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"monster-quiz-engine/internal/domain"
)

// Repository is the slice of the persistence port the ledger needs.
type Repository interface {
	LoadUserProgress(ctx context.Context) (domain.UserProgress, error)
	SaveUserProgress(ctx context.Context, progress domain.UserProgress) error
	LoadAchievements(ctx context.Context) (map[string]time.Time, error)
	SaveAchievements(ctx context.Context, unlocks map[string]time.Time) error
	LoadGameSessions(ctx context.Context) ([]domain.GameSession, error)
	SaveGameSession(ctx context.Context, session domain.GameSession) error
}

// Ledger owns one player's progress record: experience, level, streak,
// achievements, settings and session history.
//
// A Ledger is meant to be driven by a single actor and does no locking;
// callers that share one across goroutines must serialize access.
type Ledger struct {
	repo   Repository
	now    func() time.Time
	logger *slog.Logger
	rules  []Rule

	progress    domain.UserProgress
	unlocks     map[string]time.Time
	sessions    []domain.GameSession
	lastCorrect *time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRules replaces the achievement table.
func WithRules(rules []Rule) Option {
	return func(l *Ledger) { l.rules = append([]Rule(nil), rules...) }
}

// NewLedger loads persisted state through repo. Malformed blobs come back as
// defaults from the repository; only read failures are returned.
func NewLedger(ctx context.Context, repo Repository, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
		rules:  DefaultRules(),
	}
	for _, opt := range opts {
		opt(l)
	}

	progress, err := repo.LoadUserProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	unlocks, err := repo.LoadAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	sessions, err := repo.LoadGameSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	if progress.ContentCounts == nil {
		progress.ContentCounts = make(map[domain.ContentType]int)
	}
	if progress.DailyQuestions == nil {
		progress.DailyQuestions = make(map[string]int)
	}
	l.progress = progress
	l.progress.Level = CalculateLevel(progress.Experience)
	l.unlocks = l.knownUnlocks(unlocks)
	l.syncAchievementIDs()
	l.sessions = sessions
	return l, nil
}

// UpdateProgress records one answer. It returns a LevelUpResult when the
// answer crossed a level threshold, nil otherwise. A non-nil error wraps
// domain.ErrPersistence; the in-memory update has already happened.
func (l *Ledger) UpdateProgress(ctx context.Context, isCorrect bool, contentType domain.ContentType) (*domain.LevelUpResult, error) {
	now := l.now()
	p := &l.progress

	p.TotalQuestions++
	p.DailyQuestions[dayKey(now)]++
	if contentType != "" {
		p.ContentCounts[contentType]++
	}

	gained := 0
	if isCorrect {
		p.CorrectAnswers++
		p.Streak++
		if p.Streak > p.MaxStreak {
			p.MaxStreak = p.Streak
		}
		gained = BaseExperience + StreakBonus(p.Streak)
		p.Experience += gained
		l.lastCorrect = &now
	} else {
		p.Streak = 0
		l.lastCorrect = nil
	}

	previous := p.Level
	p.Level = CalculateLevel(p.Experience)

	l.evaluateAchievements(now)
	err := l.persist(ctx)

	if p.Level > previous {
		l.logger.Info("level up",
			slog.Int("previous_level", previous),
			slog.Int("new_level", p.Level),
			slog.Int("experience", p.Experience))
		return &domain.LevelUpResult{
			PreviousLevel:    previous,
			NewLevel:         p.Level,
			ExperienceGained: gained,
			TotalExperience:  p.Experience,
		}, err
	}
	return nil, err
}

// CalculateLevel exposes the level curve on the ledger surface.
func (l *Ledger) CalculateLevel(experience int) int {
	return CalculateLevel(experience)
}

// GetExperienceForNextLevel reports progress inside the current level.
func (l *Ledger) GetExperienceForNextLevel() domain.LevelProgress {
	current, required, percentage := levelProgress(l.progress.Experience)
	return domain.LevelProgress{Current: current, Required: required, Percentage: percentage}
}

// CheckAchievements unlocks every rule that is satisfied and not yet unlocked,
// then returns the full table. Already-unlocked entries keep their timestamp.
func (l *Ledger) CheckAchievements(ctx context.Context) ([]domain.Achievement, error) {
	var err error
	if l.evaluateAchievements(l.now()) > 0 {
		err = l.persist(ctx)
	}
	return l.achievements(), err
}

// GetAchievementProgress summarizes unlocks; Recent is newest first.
func (l *Ledger) GetAchievementProgress() domain.AchievementProgress {
	all := l.achievements()
	recent := make([]domain.Achievement, 0, len(l.unlocks))
	for _, a := range all {
		if a.Unlocked() {
			recent = append(recent, a)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].UnlockedAt.After(*recent[j].UnlockedAt)
	})

	out := domain.AchievementProgress{
		Total:    len(all),
		Unlocked: len(recent),
		Recent:   recent,
	}
	if out.Total > 0 {
		out.Percentage = 100 * float64(out.Unlocked) / float64(out.Total)
	}
	return out
}

// GetComboState derives the combo from the current streak.
func (l *Ledger) GetComboState() domain.ComboState {
	state := domain.ComboState{
		CurrentCombo:    l.progress.Streak,
		MaxCombo:        l.progress.MaxStreak,
		ComboMultiplier: 1.0,
		IsOnFire:        l.progress.Streak >= FireThreshold,
	}
	if l.lastCorrect != nil {
		t := *l.lastCorrect
		state.LastCorrectTime = &t
	}
	if bonus := ComboBonusFor(l.progress.Streak); bonus != nil {
		state.ComboMultiplier = bonus.ExperienceMultiplier
	}
	return state
}

// GetComboBonus returns the active tier's bonus, or nil below the fire tier.
func (l *Ledger) GetComboBonus() *domain.ComboBonus {
	return ComboBonusFor(l.progress.Streak)
}

// UpdateSettings merges patch into the settings and persists them. An empty
// content-type set is stored as given; see domain.GameSettings.Validate.
func (l *Ledger) UpdateSettings(ctx context.Context, patch domain.SettingsPatch) (domain.GameSettings, error) {
	l.progress.Settings = patch.Apply(l.progress.Settings)
	return l.GetSettings(), l.persistProgress(ctx)
}

// GetSettings returns a copy of the current settings.
func (l *Ledger) GetSettings() domain.GameSettings {
	s := l.progress.Settings
	s.ContentTypes = append([]domain.ContentType(nil), s.ContentTypes...)
	return s
}

// SaveGameSession appends session to the session log.
func (l *Ledger) SaveGameSession(ctx context.Context, session domain.GameSession) error {
	replaced := false
	for i := range l.sessions {
		if l.sessions[i].ID == session.ID {
			l.sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		l.sessions = append(l.sessions, session)
	}
	sort.SliceStable(l.sessions, func(i, j int) bool {
		return l.sessions[i].StartTime.After(l.sessions[j].StartTime)
	})

	if err := l.repo.SaveGameSession(ctx, session); err != nil {
		l.logger.Error("save game session failed", slog.String("session_id", session.ID), slog.Any("error", err))
		return err
	}
	return nil
}

// GetRecentSessions returns up to n sessions, most recently started first.
func (l *Ledger) GetRecentSessions(n int) ([]domain.GameSession, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative session count %d", domain.ErrInvalidInput, n)
	}
	if n > len(l.sessions) {
		n = len(l.sessions)
	}
	return append([]domain.GameSession{}, l.sessions[:n]...), nil
}

// GetProgressStats builds the stats read model.
func (l *Ledger) GetProgressStats() domain.ProgressStats {
	p := l.progress.Clone()
	return domain.ProgressStats{
		Level:                p.Level,
		Experience:           p.Experience,
		TotalQuestions:       p.TotalQuestions,
		CorrectAnswers:       p.CorrectAnswers,
		Accuracy:             p.Accuracy(),
		Streak:               p.Streak,
		MaxStreak:            p.MaxStreak,
		FavoriteContentType:  favoriteContentType(p.ContentCounts),
		TodayQuestions:       p.DailyQuestions[dayKey(l.now())],
		DailyQuestions:       p.DailyQuestions,
		AchievementsUnlocked: len(l.unlocks),
		AchievementsTotal:    len(l.rules),
		SessionsPlayed:       len(l.sessions),
		NextLevel:            l.GetExperienceForNextLevel(),
	}
}

// Progress returns a snapshot of the progress record for other components.
func (l *Ledger) Progress() domain.UserProgress {
	return l.progress.Clone()
}

// ResetProgress restores a fresh progress record and clears unlocks.
// The session log is kept.
func (l *Ledger) ResetProgress(ctx context.Context) error {
	l.progress = domain.NewUserProgress()
	l.unlocks = make(map[string]time.Time)
	l.lastCorrect = nil
	l.logger.Info("progress reset")
	return l.persist(ctx)
}

// evaluateAchievements unlocks newly satisfied rules and returns how many fired.
func (l *Ledger) evaluateAchievements(now time.Time) int {
	snapshot := l.progress.Clone()
	fired := 0
	for _, rule := range l.rules {
		if _, ok := l.unlocks[rule.ID]; ok {
			continue
		}
		if rule.Predicate(snapshot) {
			l.unlocks[rule.ID] = now
			fired++
			l.logger.Info("achievement unlocked", slog.String("achievement", rule.ID))
		}
	}
	if fired > 0 {
		l.syncAchievementIDs()
	}
	return fired
}

func (l *Ledger) achievements() []domain.Achievement {
	out := make([]domain.Achievement, 0, len(l.rules))
	for _, rule := range l.rules {
		a := domain.Achievement{ID: rule.ID, Name: rule.Name, Description: rule.Description}
		if at, ok := l.unlocks[rule.ID]; ok {
			t := at
			a.UnlockedAt = &t
		}
		out = append(out, a)
	}
	return out
}

// knownUnlocks drops unlock records for rules that no longer exist.
func (l *Ledger) knownUnlocks(stored map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(stored))
	for _, rule := range l.rules {
		if at, ok := stored[rule.ID]; ok {
			out[rule.ID] = at
		}
	}
	return out
}

func (l *Ledger) syncAchievementIDs() {
	ids := make([]string, 0, len(l.unlocks))
	for _, rule := range l.rules {
		if _, ok := l.unlocks[rule.ID]; ok {
			ids = append(ids, rule.ID)
		}
	}
	l.progress.Achievements = ids
}

func (l *Ledger) persist(ctx context.Context) error {
	progressErr := l.persistProgress(ctx)
	var achievementsErr error
	if err := l.repo.SaveAchievements(ctx, l.unlocks); err != nil {
		l.logger.Error("save achievements failed", slog.Any("error", err))
		achievementsErr = err
	}
	return errors.Join(progressErr, achievementsErr)
}

func (l *Ledger) persistProgress(ctx context.Context) error {
	if err := l.repo.SaveUserProgress(ctx, l.progress); err != nil {
		l.logger.Error("save progress failed", slog.Any("error", err))
		return err
	}
	return nil
}

func favoriteContentType(counts map[domain.ContentType]int) domain.ContentType {
	var best domain.ContentType
	bestCount := 0
	for ct, n := range counts {
		if n > bestCount || (n == bestCount && n > 0 && ct < best) {
			best, bestCount = ct, n
		}
	}
	return best
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
