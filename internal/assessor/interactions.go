package assessor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

// Interactions is the reference ground-truth table: for each test user, the
// set of items the user actually interacted with.
type Interactions map[int64]map[int64]struct{}

// Add records one (user, item) interaction.
func (in Interactions) Add(userID, itemID int64) {
	items, ok := in[userID]
	if !ok {
		items = make(map[int64]struct{})
		in[userID] = items
	}
	items[itemID] = struct{}{}
}

// Relevant reports whether the user interacted with the item.
func (in Interactions) Relevant(userID, itemID int64) bool {
	_, ok := in[userID][itemID]
	return ok
}

// Users returns the ids of all test users in ascending order.
func (in Interactions) Users() []int64 {
	users := make([]int64, 0, len(in))
	for userID := range in {
		users = append(users, userID)
	}
	slices.Sort(users)
	return users
}

// LoadInteractions reads a CSV with user_id and item_id columns, located by
// header name so extra columns (weights, timestamps) are ignored.
func LoadInteractions(path string) (Interactions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open interactions file: %w", err)
	}
	defer f.Close()

	return ReadInteractions(f)
}

// ReadInteractions parses interaction rows from r.
func ReadInteractions(r io.Reader) (Interactions, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read interactions header: %w", err)
	}

	userCol, itemCol := -1, -1
	for i, name := range header {
		switch name {
		case "user_id":
			userCol = i
		case "item_id":
			itemCol = i
		}
	}
	if userCol < 0 || itemCol < 0 {
		return nil, fmt.Errorf("%w: user_id and item_id columns are required", ErrBadInteractions)
	}

	interactions := make(Interactions)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read interactions row: %w", err)
		}

		userID, err := strconv.ParseInt(record[userCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad user_id at line %d", ErrBadInteractions, line)
		}
		itemID, err := strconv.ParseInt(record[itemCol], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad item_id at line %d", ErrBadInteractions, line)
		}
		interactions.Add(userID, itemID)
	}

	return interactions, nil
}
