package council

import (
	"fmt"
	"math/rand"
)

// anonymized pairs a Stage-1 response with its query-local label. The
// label-to-model mapping is secret state: models only ever see the labels
// during ranking, and the mapping is resolved afterwards for score
// attribution.
type anonymized struct {
	Label    string
	Response Stage1Response
}

// anonymize assigns sequential labels ("Response A", "Response B", ...) to
// the Stage-1 responses in a shuffled order, so label position carries no
// information about member identity. Returns the labeled responses in label
// order plus the private label-to-model mapping.
func anonymize(results []Stage1Response, rng *rand.Rand) ([]anonymized, map[string]string) {
	shuffled := make([]Stage1Response, len(results))
	copy(shuffled, results)

	if rng != nil {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	} else {
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
	}

	labeled := make([]anonymized, 0, len(shuffled))
	labelToModel := make(map[string]string, len(shuffled))

	for i, result := range shuffled {
		label := fmt.Sprintf("Response %c", rune('A'+i))
		labelToModel[label] = result.Model
		labeled = append(labeled, anonymized{Label: label, Response: result})
	}

	return labeled, labelToModel
}

// labelsOf returns just the labels, in assignment order.
func labelsOf(labeled []anonymized) []string {
	labels := make([]string, 0, len(labeled))
	for _, a := range labeled {
		labels = append(labels, a.Label)
	}
	return labels
}
