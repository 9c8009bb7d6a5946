package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"monster-quiz-engine/internal/domain"
)

// KV is the blob store the engine persists into (memory, sqlite, Redis, Postgres).
// Get on a missing key returns found=false and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Fixed blob keys.
const (
	KeyUserProgress = "quiz_user_progress"
	KeyAchievements = "quiz_achievements"
	KeyGameSessions = "quiz_game_sessions"
	KeyRankings     = "quiz_rankings"
)

// Repository provides typed load/save helpers over a KV. Malformed blobs are
// logged and replaced by defaults; write failures are wrapped in
// domain.ErrPersistence.
type Repository struct {
	kv        KV
	namespace string
	logger    *slog.Logger
}

// Option configures a Repository.
type Option func(*Repository)

// WithNamespace prefixes every per-player key, so several ledgers can share one KV.
// Rankings are global and never namespaced.
func WithNamespace(ns string) Option {
	return func(r *Repository) { r.namespace = ns }
}

// WithLogger sets the logger used for recovered decode failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRepository(kv KV, opts ...Option) *Repository {
	r := &Repository{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + ":" + k
}

// LoadUserProgress returns the stored progress or a fresh record.
func (r *Repository) LoadUserProgress(ctx context.Context) (domain.UserProgress, error) {
	progress := domain.NewUserProgress()
	ok, err := r.load(ctx, r.key(KeyUserProgress), &progress)
	if err != nil {
		return domain.NewUserProgress(), err
	}
	if !ok {
		return domain.NewUserProgress(), nil
	}
	return normalizeProgress(progress), nil
}

func (r *Repository) SaveUserProgress(ctx context.Context, progress domain.UserProgress) error {
	return r.save(ctx, r.key(KeyUserProgress), progress)
}

// LoadAchievements returns unlock timestamps keyed by achievement id.
func (r *Repository) LoadAchievements(ctx context.Context) (map[string]time.Time, error) {
	unlocks := make(map[string]time.Time)
	ok, err := r.load(ctx, r.key(KeyAchievements), &unlocks)
	if err != nil {
		return make(map[string]time.Time), err
	}
	if !ok || unlocks == nil {
		return make(map[string]time.Time), nil
	}
	return unlocks, nil
}

func (r *Repository) SaveAchievements(ctx context.Context, unlocks map[string]time.Time) error {
	return r.save(ctx, r.key(KeyAchievements), unlocks)
}

// LoadGameSessions returns the session log, most recently started first.
func (r *Repository) LoadGameSessions(ctx context.Context) ([]domain.GameSession, error) {
	var sessions []domain.GameSession
	ok, err := r.load(ctx, r.key(KeyGameSessions), &sessions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.GameSession{}, nil
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

// SaveGameSession appends session to the stored log. A session with an id
// already present replaces the earlier record.
func (r *Repository) SaveGameSession(ctx context.Context, session domain.GameSession) error {
	sessions, err := r.LoadGameSessions(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range sessions {
		if sessions[i].ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}
	return r.save(ctx, r.key(KeyGameSessions), sessions)
}

// LoadRankings returns the stored leaderboard windows or empty ones.
func (r *Repository) LoadRankings(ctx context.Context) (domain.RankingData, error) {
	data := domain.NewRankingData()
	ok, err := r.load(ctx, KeyRankings, &data)
	if err != nil {
		return domain.NewRankingData(), err
	}
	if !ok {
		return domain.NewRankingData(), nil
	}
	if data.DailyRankings == nil {
		data.DailyRankings = []domain.RankingEntry{}
	}
	if data.WeeklyRankings == nil {
		data.WeeklyRankings = []domain.RankingEntry{}
	}
	if data.AllTimeRankings == nil {
		data.AllTimeRankings = []domain.RankingEntry{}
	}
	return data, nil
}

func (r *Repository) SaveRankings(ctx context.Context, data domain.RankingData) error {
	return r.save(ctx, KeyRankings, data)
}

// load reports found=false for missing or undecodable blobs. Only read
// errors from the KV itself are returned.
func (r *Repository) load(ctx context.Context, key string, into any) (bool, error) {
	raw, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !found || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		r.logger.Warn("discarding malformed persisted state", slog.String("key", key), slog.Any("error", err))
		return false, nil
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrPersistence, key, err)
	}
	if err := r.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}

// normalizeProgress repairs a decoded record that violates basic invariants
// (older blobs, hand-edited storage).
func normalizeProgress(p domain.UserProgress) domain.UserProgress {
	if p.Level < 1 {
		p.Level = 1
	}
	if p.Experience < 0 {
		p.Experience = 0
	}
	if p.TotalQuestions < 0 {
		p.TotalQuestions = 0
	}
	if p.CorrectAnswers < 0 {
		p.CorrectAnswers = 0
	}
	if p.CorrectAnswers > p.TotalQuestions {
		p.TotalQuestions = p.CorrectAnswers
	}
	if p.Streak < 0 {
		p.Streak = 0
	}
	if p.MaxStreak < p.Streak {
		p.MaxStreak = p.Streak
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
	if p.ContentCounts == nil {
		p.ContentCounts = make(map[domain.ContentType]int)
	}
	if p.DailyQuestions == nil {
		p.DailyQuestions = make(map[string]int)
	}
	if p.Settings.ContentTypes == nil && p.Settings.QuestionsPerSession == 0 {
		p.Settings = domain.DefaultSettings()
	}
	return p
}
