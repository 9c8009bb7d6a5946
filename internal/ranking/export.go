package ranking

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"monster-quiz-engine/internal/domain"
)

var csvHeader = []string{"順位", "プレイヤー名", "スコア", "レベル", "正解数", "問題数", "正答率", "モンスター数", "達成日時"}

// ExportRankingData returns {exportDate, rankings} as indented JSON.
func (s *Store) ExportRankingData(ctx context.Context) ([]byte, error) {
	data, err := s.GetRankings(ctx)
	export := domain.RankingExport{ExportDate: s.now(), Rankings: data}
	out, merr := json.MarshalIndent(export, "", "  ")
	if merr != nil {
		return nil, fmt.Errorf("encode ranking export: %w", merr)
	}
	return out, err
}

// ExportRankingCSV renders one window as CSV, rank in the first column.
func (s *Store) ExportRankingCSV(ctx context.Context, category domain.Category) (string, error) {
	if _, err := s.data.Entries(category); err != nil {
		return "", err
	}
	data, err := s.GetRankings(ctx)
	entries, _ := data.Entries(category)

	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(csvHeader)
	for i, e := range entries {
		_ = w.Write([]string{
			strconv.Itoa(i + 1),
			e.PlayerName,
			strconv.Itoa(e.Score),
			strconv.Itoa(e.Level),
			strconv.Itoa(e.CorrectAnswers),
			strconv.Itoa(e.TotalQuestions),
			strconv.FormatFloat(e.Accuracy*100, 'f', 1, 64) + "%",
			strconv.Itoa(e.MonstersCollected),
			e.DateAchieved.In(s.now().Location()).Format("2006-01-02 15:04:05"),
		})
	}
	w.Flush()
	if werr := w.Error(); werr != nil {
		return "", fmt.Errorf("encode ranking csv: %w", werr)
	}
	return b.String(), err
}
