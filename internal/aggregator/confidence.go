package aggregator

import "github.com/ShayCichocki/cascade/pkg/models"

const (
	// originWeight and scoreWeight split the confidence estimate between
	// source agreement and per-source quality scores.
	originWeight = 0.4
	scoreWeight  = 0.6

	// neutralScore is used for sources that carry no score of their own.
	neutralScore = 0.5

	// originSaturation is the origin count at which the agreement factor
	// maxes out. Past this point more sources stop raising confidence.
	originSaturation = 5
)

// confidence estimates how trustworthy a merged result is, in [0,1].
// More distinct origins and higher source scores both raise it.
func confidence(results []models.SourceResult) float64 {
	if len(results) == 0 {
		return 0
	}

	origins := make(map[string]bool, len(results))
	scoreSum := 0.0
	for _, r := range results {
		origins[r.Origin] = true
		if r.Score != nil {
			scoreSum += *r.Score
		} else {
			scoreSum += neutralScore
		}
	}

	originFactor := float64(len(origins)) / float64(originSaturation)
	if originFactor > 1.0 {
		originFactor = 1.0
	}
	meanScore := scoreSum / float64(len(results))

	c := originWeight*originFactor + scoreWeight*meanScore
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
