package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SnapshotKey is the slot key the whole cart is stored under.
const SnapshotKey = "cartProduct"

var ErrMalformedSnapshot = errors.New("malformed cart snapshot")

type LineItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// KeyFor returns the slot key of an owner's cart. The anonymous owner uses
// the bare SnapshotKey.
func KeyFor(owner string) string {
	if owner == "" {
		return SnapshotKey
	}
	return SnapshotKey + ":" + owner
}

func encodeSnapshot(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeSnapshot(raw string) ([]LineItem, error) {
	var items []LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}
