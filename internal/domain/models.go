package domain

import "time"

// ContentType identifies the dataset a question was drawn from.
type ContentType string

const (
	ContentProverb       ContentType = "proverb"
	ContentIdiom         ContentType = "idiom"
	ContentFourCharIdiom ContentType = "four_character_idiom"
	ContentKanjiReading  ContentType = "kanji_reading"
)

const defaultQuestionsCount = 10

// AllContentTypes lists every content type the game ships with.
func AllContentTypes() []ContentType {
	return []ContentType{ContentProverb, ContentIdiom, ContentFourCharIdiom, ContentKanjiReading}
}

// GameSettings holds per-installation play preferences.
type GameSettings struct {
	ContentTypes        []ContentType `json:"contentTypes"`
	Difficulty          string        `json:"difficulty"`
	QuestionsPerSession int           `json:"questionsPerSession"`
	SoundEnabled        bool          `json:"soundEnabled"`
	VoiceEnabled        bool          `json:"voiceEnabled"`
	ShowHints           bool          `json:"showHints"`
}

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() GameSettings {
	return GameSettings{
		ContentTypes:        []ContentType{ContentProverb, ContentIdiom, ContentFourCharIdiom},
		Difficulty:          "normal",
		QuestionsPerSession: defaultQuestionsCount,
		SoundEnabled:        true,
		VoiceEnabled:        true,
		ShowHints:           true,
	}
}

// Validate rejects an empty content set or a non-positive session length.
// The ledger itself never calls it.
func (s GameSettings) Validate() error {
	if len(s.ContentTypes) == 0 {
		return ErrNoContentTypes
	}
	if s.QuestionsPerSession <= 0 {
		return ErrInvalidInput
	}
	return nil
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	ContentTypes        *[]ContentType `json:"contentTypes,omitempty"`
	Difficulty          *string        `json:"difficulty,omitempty"`
	QuestionsPerSession *int           `json:"questionsPerSession,omitempty"`
	SoundEnabled        *bool          `json:"soundEnabled,omitempty"`
	VoiceEnabled        *bool          `json:"voiceEnabled,omitempty"`
	ShowHints           *bool          `json:"showHints,omitempty"`
}

// Apply merges the patch into s and returns the result.
func (p SettingsPatch) Apply(s GameSettings) GameSettings {
	if p.ContentTypes != nil {
		s.ContentTypes = append([]ContentType{}, (*p.ContentTypes)...)
	}
	if p.Difficulty != nil {
		s.Difficulty = *p.Difficulty
	}
	if p.QuestionsPerSession != nil {
		s.QuestionsPerSession = *p.QuestionsPerSession
	}
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.VoiceEnabled != nil {
		s.VoiceEnabled = *p.VoiceEnabled
	}
	if p.ShowHints != nil {
		s.ShowHints = *p.ShowHints
	}
	return s
}

// UserProgress is the persisted progress record of one player.
type UserProgress struct {
	Level          int                 `json:"level"`
	Experience     int                 `json:"experience"`
	TotalQuestions int                 `json:"totalQuestions"`
	CorrectAnswers int                 `json:"correctAnswers"`
	Streak         int                 `json:"streak"`
	MaxStreak      int                 `json:"maxStreak"`
	Achievements   []string            `json:"achievements"`
	Settings       GameSettings        `json:"settings"`
	ContentCounts  map[ContentType]int `json:"contentCounts,omitempty"`
	DailyQuestions map[string]int      `json:"dailyQuestions,omitempty"`
}

// NewUserProgress returns the zero-value progress of a fresh installation.
func NewUserProgress() UserProgress {
	return UserProgress{
		Level:          1,
		Achievements:   []string{},
		Settings:       DefaultSettings(),
		ContentCounts:  make(map[ContentType]int),
		DailyQuestions: make(map[string]int),
	}
}

// Accuracy is correct/total in [0,1]; zero when nothing was answered.
func (p UserProgress) Accuracy() float64 {
	if p.TotalQuestions == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.TotalQuestions)
}

// Clone returns a deep copy so snapshots handed to callers never alias ledger state.
func (p UserProgress) Clone() UserProgress {
	out := p
	out.Achievements = append([]string{}, p.Achievements...)
	out.Settings.ContentTypes = append([]ContentType(nil), p.Settings.ContentTypes...)
	out.ContentCounts = make(map[ContentType]int, len(p.ContentCounts))
	for k, v := range p.ContentCounts {
		out.ContentCounts[k] = v
	}
	out.DailyQuestions = make(map[string]int, len(p.DailyQuestions))
	for k, v := range p.DailyQuestions {
		out.DailyQuestions[k] = v
	}
	return out
}

// LevelUpResult is returned by an answer that crossed a level threshold.
type LevelUpResult struct {
	PreviousLevel    int `json:"previousLevel"`
	NewLevel         int `json:"newLevel"`
	ExperienceGained int `json:"experienceGained"`
	TotalExperience  int `json:"totalExperience"`
}

// LevelProgress describes how far the player is into the current level.
type LevelProgress struct {
	Current    int     `json:"current"`
	Required   int     `json:"required"`
	Percentage float64 `json:"percentage"`
}

// ComboState is derived from the current streak of correct answers.
type ComboState struct {
	CurrentCombo    int        `json:"currentCombo"`
	MaxCombo        int        `json:"maxCombo"`
	LastCorrectTime *time.Time `json:"lastCorrectTime,omitempty"`
	ComboMultiplier float64    `json:"comboMultiplier"`
	IsOnFire        bool       `json:"isOnFire"`
}

// ComboBonus is the reward attached to a combo tier. ExperienceMultiplier is
// informational: the ledger awards base experience plus the streak bonus and
// never scales it by the multiplier.
type ComboBonus struct {
	Tier                   string  `json:"tier"`
	ExperienceMultiplier   float64 `json:"experienceMultiplier"`
	RareMonsterChanceBonus float64 `json:"rareMonsterChanceBonus"`
	Message                string  `json:"message"`
	EffectType             string  `json:"effectType"`
}

// Achievement is a rule definition joined with its unlock record.
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// Unlocked reports whether the achievement has fired.
func (a Achievement) Unlocked() bool {
	return a.UnlockedAt != nil
}

// AchievementProgress summarizes unlocks.
type AchievementProgress struct {
	Total      int           `json:"total"`
	Unlocked   int           `json:"unlocked"`
	Percentage float64       `json:"percentage"`
	Recent     []Achievement `json:"recent"`
}

// ProgressStats is the read model behind the stats screen.
type ProgressStats struct {
	Level                int            `json:"level"`
	Experience           int            `json:"experience"`
	TotalQuestions       int            `json:"totalQuestions"`
	CorrectAnswers       int            `json:"correctAnswers"`
	Accuracy             float64        `json:"accuracy"`
	Streak               int            `json:"streak"`
	MaxStreak            int            `json:"maxStreak"`
	FavoriteContentType  ContentType    `json:"favoriteContentType,omitempty"`
	TodayQuestions       int            `json:"todayQuestions"`
	DailyQuestions       map[string]int `json:"dailyQuestions"`
	AchievementsUnlocked int            `json:"achievementsUnlocked"`
	AchievementsTotal    int            `json:"achievementsTotal"`
	SessionsPlayed       int            `json:"sessionsPlayed"`
	NextLevel            LevelProgress  `json:"nextLevel"`
}

// GameAnswer is one answer recorded inside a session.
type GameAnswer struct {
	QuestionID  string      `json:"questionId"`
	ContentType ContentType `json:"contentType,omitempty"`
	Correct     bool        `json:"correct"`
	AnsweredAt  time.Time   `json:"answeredAt"`
}

// GameSession is one play session; persisted in an append-only log.
type GameSession struct {
	ID               string       `json:"id"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          *time.Time   `json:"endTime,omitempty"`
	Questions        []string     `json:"questions"`
	Answers          []GameAnswer `json:"answers"`
	Score            int          `json:"score"`
	MonstersUnlocked []string     `json:"monstersUnlocked"`
}

// AnswerSubmission is one answer reported by the game client. MonsterID is
// set when the correct answer unlocked a monster.
type AnswerSubmission struct {
	QuestionID  string      `json:"questionId"`
	ContentType ContentType `json:"contentType"`
	Correct     bool        `json:"correct"`
	MonsterID   string      `json:"monsterId,omitempty"`
}
