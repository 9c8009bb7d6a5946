package progress

import "monster-quiz-engine/internal/domain"

// Rule is an immutable achievement definition.
type Rule struct {
	ID          string
	Name        string
	Description string
	Predicate   func(p domain.UserProgress) bool
}

var defaultRules = []Rule{
	{ID: "first_correct", Name: "First Catch", Description: "Answer a question correctly",
		Predicate: func(p domain.UserProgress) bool { return p.CorrectAnswers >= 1 }},
	{ID: "correct_10", Name: "Apprentice", Description: "Answer 10 questions correctly",
		Predicate: func(p domain.UserProgress) bool { return p.CorrectAnswers >= 10 }},
	{ID: "correct_50", Name: "Scholar", Description: "Answer 50 questions correctly",
		Predicate: func(p domain.UserProgress) bool { return p.CorrectAnswers >= 50 }},
	{ID: "correct_100", Name: "Sage", Description: "Answer 100 questions correctly",
		Predicate: func(p domain.UserProgress) bool { return p.CorrectAnswers >= 100 }},
	{ID: "streak_5", Name: "On Fire", Description: "Reach a streak of 5",
		Predicate: func(p domain.UserProgress) bool { return p.MaxStreak >= 5 }},
	{ID: "streak_10", Name: "Unstoppable", Description: "Reach a streak of 10",
		Predicate: func(p domain.UserProgress) bool { return p.MaxStreak >= 10 }},
	{ID: "streak_20", Name: "Legendary Combo", Description: "Reach a streak of 20",
		Predicate: func(p domain.UserProgress) bool { return p.MaxStreak >= 20 }},
	{ID: "questions_50", Name: "Regular", Description: "Answer 50 questions",
		Predicate: func(p domain.UserProgress) bool { return p.TotalQuestions >= 50 }},
	{ID: "questions_100", Name: "Devoted", Description: "Answer 100 questions",
		Predicate: func(p domain.UserProgress) bool { return p.TotalQuestions >= 100 }},
	{ID: "perfect_rate", Name: "Sharpshooter", Description: "Keep 90% accuracy over at least 10 questions",
		Predicate: func(p domain.UserProgress) bool { return p.TotalQuestions >= 10 && p.Accuracy() >= 0.9 }},
	{ID: "level_5", Name: "Rising Tamer", Description: "Reach level 5",
		Predicate: func(p domain.UserProgress) bool { return p.Level >= 5 }},
	{ID: "level_10", Name: "Monster Master", Description: "Reach level 10",
		Predicate: func(p domain.UserProgress) bool { return p.Level >= 10 }},
}

// DefaultRules returns a copy of the built-in achievement table.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}
