package catalog

import "context"

// Product is what the app lists and what the cart copies into a line item.
type Product struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
}
