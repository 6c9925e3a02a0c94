package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

type CatalogProduct struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	ImageURL string  `json:"image_url"`
	Price    float64 `json:"price"`
}

func (p CatalogProduct) LineItem() LineItem {
	return LineItem{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
	}
}

var (
	ErrCatalogNotFound    = errors.New("catalog product not found")
	ErrCatalogBadStatus   = errors.New("catalog bad status")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

type CatalogClient struct {
	BaseURL string
	Client  *http.Client

	breaker *gobreaker.CircuitBreaker[CatalogProduct]
}

func NewCatalogClient(baseURL string) *CatalogClient {
	return &CatalogClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 3 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[CatalogProduct](gobreaker.Settings{
			Name:        "catalog",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// A missing product is a normal answer, not a sign of a sick catalog.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrCatalogNotFound)
			},
		}),
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, id string) (CatalogProduct, error) {
	p, err := c.breaker.Execute(func() (CatalogProduct, error) {
		return c.fetch(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CatalogProduct{}, ErrCatalogUnavailable
	}
	return p, err
}

func (c *CatalogClient) fetch(ctx context.Context, id string) (CatalogProduct, error) {
	u := fmt.Sprintf("%s/products/%s", c.BaseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return CatalogProduct{}, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return CatalogProduct{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return CatalogProduct{}, ErrCatalogNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return CatalogProduct{}, fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode)
	}

	var p CatalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return CatalogProduct{}, fmt.Errorf("%w: decode: %v", ErrCatalogBadStatus, err)
	}
	return p, nil
}
