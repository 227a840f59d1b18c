package council

import (
	"regexp"
	"sort"
	"strings"
)

var (
	numberedPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	labelPattern    = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRanking extracts an ordered label list from a ranker's free-form
// output. It prefers the numbered list under a "FINAL RANKING:" header and
// falls back to any "Response X" mentions in order of appearance.
func ParseRanking(text string) []string {
	if strings.Contains(text, "FINAL RANKING:") {
		parts := strings.SplitN(text, "FINAL RANKING:", 2)
		section := parts[1]

		if numbered := numberedPattern.FindAllString(section, -1); len(numbered) > 0 {
			results := make([]string, 0, len(numbered))
			for _, match := range numbered {
				if label := labelPattern.FindString(match); label != "" {
					results = append(results, label)
				}
			}
			return results
		}

		if matches := labelPattern.FindAllString(section, -1); len(matches) > 0 {
			return matches
		}
	}

	return labelPattern.FindAllString(text, -1)
}

// IsPermutation reports whether parsed ranks every expected label exactly
// once with no foreign labels. Submissions that fail this check are discarded
// from aggregate scoring.
func IsPermutation(parsed, labels []string) bool {
	if len(parsed) != len(labels) {
		return false
	}

	expected := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		expected[label] = struct{}{}
	}

	seen := make(map[string]struct{}, len(parsed))
	for _, label := range parsed {
		if _, ok := expected[label]; !ok {
			return false
		}
		if _, dup := seen[label]; dup {
			return false
		}
		seen[label] = struct{}{}
	}

	return true
}

// ComputeAggregateRankings calculates each member's mean rank position across
// the valid submissions that ranked it, with the count of contributing
// rankers. Sorted ascending by mean rank (best first); ties break by higher
// ranking count, then by the configured member order so output is
// deterministic.
func ComputeAggregateRankings(stage2 []Stage2Ranking, labelToModel map[string]string, memberOrder []string) []AggregateRanking {
	positions := make(map[string][]int)

	for _, ranking := range stage2 {
		if !ranking.Valid {
			continue
		}
		for pos, label := range ranking.ParsedRanking {
			if model, ok := labelToModel[label]; ok {
				positions[model] = append(positions[model], pos+1)
			}
		}
	}

	orderIndex := make(map[string]int, len(memberOrder))
	for i, model := range memberOrder {
		orderIndex[model] = i
	}

	aggregate := make([]AggregateRanking, 0, len(positions))
	for model, ranks := range positions {
		sum := 0
		for _, rank := range ranks {
			sum += rank
		}
		aggregate = append(aggregate, AggregateRanking{
			Model:         model,
			AverageRank:   float64(sum) / float64(len(ranks)),
			RankingsCount: len(ranks),
		})
	}

	sort.SliceStable(aggregate, func(i, j int) bool {
		if aggregate[i].AverageRank != aggregate[j].AverageRank {
			return aggregate[i].AverageRank < aggregate[j].AverageRank
		}
		if aggregate[i].RankingsCount != aggregate[j].RankingsCount {
			return aggregate[i].RankingsCount > aggregate[j].RankingsCount
		}
		return orderIndex[aggregate[i].Model] < orderIndex[aggregate[j].Model]
	})

	return aggregate
}
