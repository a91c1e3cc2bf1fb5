// Package ranking orders participants into a leaderboard.
package ranking

import (
	"sort"

	"arith-live-service/internal/domain"
)

// Rank orders participants by correct answers (desc), then total time (asc).
// Exact ties keep the input (join) order.
func Rank(participants []domain.Participant) []domain.RankEntry {
	entries := make([]domain.RankEntry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, domain.RankEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         p.Score(),
			Answered:      len(p.Answers),
			TotalTimeMs:   p.TotalTimeMs,
			AverageTimeMs: p.AverageTimeMs,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].TotalTimeMs < entries[j].TotalTimeMs
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Top truncates a ranking to n rows; n <= 0 keeps every row.
func Top(entries []domain.RankEntry, n int) []domain.RankEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
