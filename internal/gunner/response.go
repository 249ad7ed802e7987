package gunner

import (
	"encoding/json"
	"fmt"
)

// Ranks are 1-based within each user's item list.
const startRankFrom = 1

// RecoResponse is one endpoint's validated reply for one user.
type RecoResponse struct {
	UserID int64   `json:"user_id"`
	Items  []int64 `json:"items"`
}

// Row is one flattened recommendation: an item recommended to a user at a rank.
type Row struct {
	UserID int64
	ItemID int64
	Rank   int
}

// ParseResponse decodes and validates a raw response body. The reply must
// contain exactly recoSize distinct items; anything else is a protocol
// violation, not a transport failure.
func ParseResponse(body []byte, recoSize int) (RecoResponse, error) {
	var resp RecoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return RecoResponse{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if err := resp.Validate(recoSize); err != nil {
		return RecoResponse{}, err
	}
	return resp, nil
}

// Validate checks the response invariants: exact item count and distinctness.
func (r RecoResponse) Validate(recoSize int) error {
	if len(r.Items) != recoSize {
		return fmt.Errorf("%w: expected %d items, got %d", ErrRecommendationsLimitSize, recoSize, len(r.Items))
	}
	seen := make(map[int64]struct{}, len(r.Items))
	for _, item := range r.Items {
		if _, ok := seen[item]; ok {
			return fmt.Errorf("%w: item %d repeated for user %d", ErrDuplicatedRecommendations, item, r.UserID)
		}
		seen[item] = struct{}{}
	}
	return nil
}

// Prepare flattens the response into ranked rows, preserving item order.
func (r RecoResponse) Prepare() []Row {
	rows := make([]Row, len(r.Items))
	for i, item := range r.Items {
		rows[i] = Row{UserID: r.UserID, ItemID: item, Rank: i + startRankFrom}
	}
	return rows
}
