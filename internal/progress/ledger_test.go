package progress_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"monster-quiz-engine/internal/domain"
	"monster-quiz-engine/internal/infra/memory"
	"monster-quiz-engine/internal/progress"
	"monster-quiz-engine/internal/storage"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *testClock {
	return &testClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func newLedger(t *testing.T, kv storage.KV, clock *testClock) *progress.Ledger {
	t.Helper()
	ledger, err := progress.NewLedger(context.Background(), storage.NewRepository(kv), progress.WithClock(clock.Now))
	require.NoError(t, err)
	return ledger
}

func answer(t *testing.T, l *progress.Ledger, correct bool) *domain.LevelUpResult {
	t.Helper()
	result, err := l.UpdateProgress(context.Background(), correct, domain.ContentProverb)
	require.NoError(t, err)
	return result
}

func TestUpdateProgressAwardsExperienceAndLevelsUp(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)

	// 12 + 14 + 16 + 18 + 20 = 80
	for i := 0; i < 5; i++ {
		assert.Nil(t, answer(t, ledger, true))
	}
	assert.Equal(t, 80, ledger.Progress().Experience)

	result := answer(t, ledger, true)
	require.NotNil(t, result)
	assert.Equal(t, domain.LevelUpResult{
		PreviousLevel:    1,
		NewLevel:         2,
		ExperienceGained: 22,
		TotalExperience:  102,
	}, *result)

	next := ledger.GetExperienceForNextLevel()
	assert.Equal(t, 2, next.Current)
	assert.Equal(t, 150, next.Required)
	assert.InDelta(t, 100*2.0/150.0, next.Percentage, 1e-9)
}

func TestWrongAnswerAwardsNothingAndResetsStreak(t *testing.T) {
	ledger := newLedger(t, memory.NewKVStore(), newClock())

	answer(t, ledger, true)
	answer(t, ledger, true)
	assert.Nil(t, answer(t, ledger, false))

	p := ledger.Progress()
	assert.Equal(t, 3, p.TotalQuestions)
	assert.Equal(t, 2, p.CorrectAnswers)
	assert.Equal(t, 0, p.Streak)
	assert.Equal(t, 2, p.MaxStreak)
	assert.Equal(t, 26, p.Experience)
}

func TestUpdateProgressInvariantsHold(t *testing.T) {
	ledger := newLedger(t, memory.NewKVStore(), newClock())
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		answer(t, ledger, rnd.Intn(4) != 0)
		p := ledger.Progress()
		require.LessOrEqual(t, p.CorrectAnswers, p.TotalQuestions)
		require.LessOrEqual(t, p.Streak, p.MaxStreak)
		require.Equal(t, progress.CalculateLevel(p.Experience), p.Level)
	}
}

func TestComboBreaksOnWrongAnswer(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		answer(t, ledger, true)
	}
	combo := ledger.GetComboState()
	assert.True(t, combo.IsOnFire)
	assert.Equal(t, 5, combo.CurrentCombo)
	assert.Equal(t, 1.2, combo.ComboMultiplier)
	require.NotNil(t, combo.LastCorrectTime)
	assert.Equal(t, clock.Now(), *combo.LastCorrectTime)
	require.NotNil(t, ledger.GetComboBonus())
	assert.Equal(t, "fire", ledger.GetComboBonus().Tier)

	answer(t, ledger, false)
	combo = ledger.GetComboState()
	assert.False(t, combo.IsOnFire)
	assert.Equal(t, 0, combo.CurrentCombo)
	assert.Equal(t, 5, combo.MaxCombo)
	assert.Equal(t, 1.0, combo.ComboMultiplier)
	assert.Nil(t, combo.LastCorrectTime)
	assert.Nil(t, ledger.GetComboBonus())
}

func TestComboMultiplierDoesNotScaleExperience(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)

	for i := 1; i <= 16; i++ {
		before := ledger.Progress().Experience
		clock.Advance(time.Second)
		answer(t, ledger, true)
		gained := ledger.Progress().Experience - before
		assert.Equal(t, progress.BaseExperience+progress.StreakBonus(i), gained, "streak %d", i)
	}
	assert.Equal(t, 2.0, ledger.GetComboState().ComboMultiplier)
}

func TestCheckAchievementsIsIdempotent(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)

	answer(t, ledger, true)
	unlockedAt := clock.Now()

	first, err := ledger.CheckAchievements(context.Background())
	require.NoError(t, err)
	clock.Advance(time.Hour)
	second, err := ledger.CheckAchievements(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, a := range second {
		if a.ID == "first_correct" {
			require.True(t, a.Unlocked())
			assert.Equal(t, unlockedAt, *a.UnlockedAt)
		} else {
			assert.False(t, a.Unlocked(), a.ID)
		}
	}
	assert.Equal(t, []string{"first_correct"}, ledger.Progress().Achievements)
}

func TestPerfectRateAchievement(t *testing.T) {
	ledger := newLedger(t, memory.NewKVStore(), newClock())
	for i := 0; i < 8; i++ {
		answer(t, ledger, true)
	}
	answer(t, ledger, false)
	answer(t, ledger, false)
	assert.False(t, unlocked(t, ledger, "perfect_rate"), "80 percent accuracy must not unlock")

	other := newLedger(t, memory.NewKVStore(), newClock())
	answer(t, other, false)
	for i := 0; i < 9; i++ {
		answer(t, other, true)
	}
	assert.True(t, unlocked(t, other, "perfect_rate"))
	assert.True(t, unlocked(t, other, "streak_5"))
}

func TestAchievementProgressRecentNewestFirst(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)

	for i := 0; i < 5; i++ {
		clock.Advance(time.Minute)
		answer(t, ledger, true)
	}

	summary := ledger.GetAchievementProgress()
	assert.Equal(t, len(progress.DefaultRules()), summary.Total)
	assert.Equal(t, 2, summary.Unlocked)
	require.Len(t, summary.Recent, 2)
	assert.Equal(t, "streak_5", summary.Recent[0].ID)
	assert.Equal(t, "first_correct", summary.Recent[1].ID)
	assert.InDelta(t, 100*2.0/float64(summary.Total), summary.Percentage, 1e-9)
}

func TestLedgerReloadsPersistedState(t *testing.T) {
	kv := memory.NewKVStore()
	clock := newClock()
	ledger := newLedger(t, kv, clock)
	for i := 0; i < 6; i++ {
		answer(t, ledger, true)
	}
	_, err := ledger.UpdateSettings(context.Background(), domain.SettingsPatch{SoundEnabled: boolPtr(false)})
	require.NoError(t, err)

	reloaded := newLedger(t, kv, clock)
	assert.Equal(t, ledger.Progress(), reloaded.Progress())
	assert.Equal(t, ledger.GetAchievementProgress(), reloaded.GetAchievementProgress())
	assert.False(t, reloaded.GetSettings().SoundEnabled)
}

func TestPersistenceFailureIsReportedButStateKept(t *testing.T) {
	kv := &flakyKV{KVStore: memory.NewKVStore()}
	ledger := newLedger(t, kv, newClock())

	kv.failWrites = true
	result, err := ledger.UpdateProgress(context.Background(), true, domain.ContentIdiom)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))

	p := ledger.Progress()
	assert.Equal(t, 1, p.CorrectAnswers)
	assert.Equal(t, 12, p.Experience)

	kv.failWrites = false
	_, err = ledger.UpdateProgress(context.Background(), true, domain.ContentIdiom)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Progress().CorrectAnswers)
}

func TestMalformedStateFallsBackToDefaults(t *testing.T) {
	kv := memory.NewKVStore()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, storage.KeyUserProgress, "{not json"))
	require.NoError(t, kv.Set(ctx, storage.KeyAchievements, "[1,2"))
	require.NoError(t, kv.Set(ctx, storage.KeyGameSessions, "42"))

	ledger := newLedger(t, kv, newClock())
	assert.Equal(t, domain.NewUserProgress(), ledger.Progress())
	assert.Equal(t, 0, ledger.GetAchievementProgress().Unlocked)
	sessions, err := ledger.GetRecentSessions(5)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStoredLevelIsRecomputedFromExperience(t *testing.T) {
	kv := memory.NewKVStore()
	require.NoError(t, kv.Set(context.Background(), storage.KeyUserProgress, `{"level":9,"experience":260,"totalQuestions":30,"correctAnswers":20}`))

	ledger := newLedger(t, kv, newClock())
	assert.Equal(t, 3, ledger.Progress().Level)
}

func TestUpdateSettingsMergesPatch(t *testing.T) {
	ledger := newLedger(t, memory.NewKVStore(), newClock())

	types := []domain.ContentType{domain.ContentIdiom}
	settings, err := ledger.UpdateSettings(context.Background(), domain.SettingsPatch{ContentTypes: &types})
	require.NoError(t, err)
	assert.Equal(t, types, settings.ContentTypes)
	assert.True(t, settings.SoundEnabled)
	assert.Equal(t, 10, settings.QuestionsPerSession)

	empty := []domain.ContentType{}
	settings, err = ledger.UpdateSettings(context.Background(), domain.SettingsPatch{ContentTypes: &empty})
	require.NoError(t, err, "the ledger stores an empty set as given")
	assert.Empty(t, settings.ContentTypes)
	assert.ErrorIs(t, settings.Validate(), domain.ErrNoContentTypes)
	assert.ErrorIs(t, settings.Validate(), domain.ErrInvalidInput)
}

func TestRecentSessionsMostRecentFirst(t *testing.T) {
	kv := memory.NewKVStore()
	ledger := newLedger(t, kv, newClock())
	base := time.Date(2024, 11, 20, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for _, offset := range []int{2, 0, 1} {
		require.NoError(t, ledger.SaveGameSession(ctx, domain.GameSession{
			ID:        string(rune('a' + offset)),
			StartTime: base.Add(time.Duration(offset) * time.Hour),
		}))
	}

	recent, err := ledger.GetRecentSessions(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	all, err := ledger.GetRecentSessions(10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = ledger.GetRecentSessions(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	reloaded := newLedger(t, kv, newClock())
	again, err := reloaded.GetRecentSessions(3)
	require.NoError(t, err)
	assert.Equal(t, all, again)
}

func TestResetProgress(t *testing.T) {
	kv := memory.NewKVStore()
	ledger := newLedger(t, kv, newClock())
	for i := 0; i < 7; i++ {
		answer(t, ledger, true)
	}
	require.NoError(t, ledger.ResetProgress(context.Background()))

	assert.Equal(t, domain.NewUserProgress(), ledger.Progress())
	assert.Equal(t, 0, ledger.GetAchievementProgress().Unlocked)
	assert.False(t, ledger.GetComboState().IsOnFire)

	reloaded := newLedger(t, kv, newClock())
	assert.Equal(t, domain.NewUserProgress(), reloaded.Progress())
}

func TestProgressStats(t *testing.T) {
	clock := newClock()
	ledger := newLedger(t, memory.NewKVStore(), clock)
	ctx := context.Background()

	_, err := ledger.UpdateProgress(ctx, true, domain.ContentIdiom)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	for _, ct := range []domain.ContentType{domain.ContentProverb, domain.ContentProverb, domain.ContentIdiom} {
		_, err := ledger.UpdateProgress(ctx, false, ct)
		require.NoError(t, err)
	}

	stats := ledger.GetProgressStats()
	assert.Equal(t, 4, stats.TotalQuestions)
	assert.Equal(t, 1, stats.CorrectAnswers)
	assert.InDelta(t, 0.25, stats.Accuracy, 1e-9)
	assert.Equal(t, domain.ContentIdiom, stats.FavoriteContentType, "ties resolve by name")
	assert.Equal(t, 3, stats.TodayQuestions)
	assert.Equal(t, map[string]int{"2024-11-22": 1, "2024-11-23": 3}, stats.DailyQuestions)
	assert.Equal(t, 1, stats.AchievementsUnlocked)
}

func unlocked(t *testing.T, l *progress.Ledger, id string) bool {
	t.Helper()
	list, err := l.CheckAchievements(context.Background())
	require.NoError(t, err)
	for _, a := range list {
		if a.ID == id {
			return a.Unlocked()
		}
	}
	t.Fatalf("unknown achievement %s", id)
	return false
}

func boolPtr(b bool) *bool { return &b }

type flakyKV struct {
	*memory.KVStore
	failWrites bool
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failWrites {
		return errors.New("quota exceeded")
	}
	return f.KVStore.Set(ctx, key, value)
}
