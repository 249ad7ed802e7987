package assessor

import (
	"fmt"
	"strconv"
	"strings"
)

// MetricFunc computes one ranking quality value for flattened recommendation
// rows against the reference interactions.
type MetricFunc func(recos []UserRecos, interactions Interactions) float64

// NamedMetric pairs a display name with its computation.
type NamedMetric struct {
	Name string
	Fn   MetricFunc
}

// MetricSet is an ordered collection of named metrics; output order follows
// the set order.
type MetricSet []NamedMetric

// UserRecos is one user's recommended items in rank order.
type UserRecos struct {
	UserID int64
	Items  []int64
}

// BuildMetricSet resolves metric display names of the form "Kind@K"
// (e.g. "MAP@10") into computations. Supported kinds: Precision, Recall, MAP.
func BuildMetricSet(names []string) (MetricSet, error) {
	set := make(MetricSet, 0, len(names))
	for _, name := range names {
		kind, k, err := splitMetricName(name)
		if err != nil {
			return nil, err
		}

		var fn MetricFunc
		switch kind {
		case "Precision":
			fn = PrecisionAtK(k)
		case "Recall":
			fn = RecallAtK(k)
		case "MAP":
			fn = MAPAtK(k)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}
		set = append(set, NamedMetric{Name: name, Fn: fn})
	}
	return set, nil
}

func splitMetricName(name string) (string, int, error) {
	kind, kStr, found := strings.Cut(name, "@")
	if !found {
		return "", 0, fmt.Errorf("%w: %q has no @K suffix", ErrUnknownMetric, name)
	}
	k, err := strconv.Atoi(kStr)
	if err != nil || k <= 0 {
		return "", 0, fmt.Errorf("%w: %q has invalid K", ErrUnknownMetric, name)
	}
	return kind, k, nil
}

// PrecisionAtK is the mean over relevant users of the fraction of the top-K
// recommendations that are relevant.
func PrecisionAtK(k int) MetricFunc {
	return func(recos []UserRecos, interactions Interactions) float64 {
		return meanOverUsers(recos, interactions, func(items []int64, truth map[int64]struct{}) float64 {
			hits := countHits(topK(items, k), truth)
			return float64(hits) / float64(k)
		})
	}
}

// RecallAtK is the mean over relevant users of the fraction of the user's
// relevant items found in the top-K recommendations.
func RecallAtK(k int) MetricFunc {
	return func(recos []UserRecos, interactions Interactions) float64 {
		return meanOverUsers(recos, interactions, func(items []int64, truth map[int64]struct{}) float64 {
			hits := countHits(topK(items, k), truth)
			return float64(hits) / float64(len(truth))
		})
	}
}

// MAPAtK is the mean over relevant users of average precision at K, with the
// per-user denominator min(|relevant|, K).
func MAPAtK(k int) MetricFunc {
	return func(recos []UserRecos, interactions Interactions) float64 {
		return meanOverUsers(recos, interactions, func(items []int64, truth map[int64]struct{}) float64 {
			var sum float64
			hits := 0
			for rank, item := range topK(items, k) {
				if _, ok := truth[item]; ok {
					hits++
					sum += float64(hits) / float64(rank+1)
				}
			}
			denom := min(len(truth), k)
			return sum / float64(denom)
		})
	}
}

// meanOverUsers averages a per-user value across users that have at least
// one reference interaction. Users without ground truth are skipped: their
// quality is undefined rather than zero.
func meanOverUsers(
	recos []UserRecos,
	interactions Interactions,
	perUser func(items []int64, truth map[int64]struct{}) float64,
) float64 {
	var sum float64
	n := 0
	for _, ur := range recos {
		truth, ok := interactions[ur.UserID]
		if !ok || len(truth) == 0 {
			continue
		}
		sum += perUser(ur.Items, truth)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func topK(items []int64, k int) []int64 {
	if len(items) > k {
		return items[:k]
	}
	return items
}

func countHits(items []int64, truth map[int64]struct{}) int {
	hits := 0
	for _, item := range items {
		if _, ok := truth[item]; ok {
			hits++
		}
	}
	return hits
}
