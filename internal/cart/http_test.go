package cart

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"MiniCart/internal/auth"
	"MiniCart/internal/catalog"
)

type testEnv struct {
	ts       *httptest.Server
	slot     *MemSlot
	provider *Provider
}

func newTestEnv(t *testing.T, tokens *auth.TokenMaker, catalogURL string) *testEnv {
	t.Helper()

	slot := NewMemSlot()
	reg := prometheus.NewRegistry()
	p := NewProvider(slot, WithMetrics(NewMetrics(reg)))

	s := &Server{Provider: p, Slot: slot, Tokens: tokens, Log: zap.NewNop()}
	if catalogURL != "" {
		s.Catalog = NewCatalogClient(catalogURL)
	}

	h := NewHandler(s, HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "cart",
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   "metrics-token",
	})

	ts := httptest.NewServer(h)
	t.Cleanup(func() {
		ts.Close()
		_ = p.Close(context.Background())
	})
	return &testEnv{ts: ts, slot: slot, provider: p}
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func decodeItems(t *testing.T, raw []byte) []LineItem {
	t.Helper()

	var cr cartResp
	if err := json.Unmarshal(raw, &cr); err != nil {
		t.Fatalf("decode cart: %v body=%s", err, raw)
	}
	return cr.Items
}

func TestCartAPI_HappyPath(t *testing.T) {
	env := newTestEnv(t, nil, "")
	base := env.ts.URL

	resp, raw := doJSON(t, http.MethodGet, base+"/cart", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status=%d", resp.StatusCode)
	}
	if items := decodeItems(t, raw); len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/cart/items?wait=true", map[string]any{
		"id": "a", "title": "Shoe", "image_url": "https://img/a.png", "price": 10, "quantity": 7,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", resp.StatusCode, raw)
	}
	if items := decodeItems(t, raw); len(items) != 1 || items[0].Quantity != 1 {
		t.Fatalf("after add: %+v", items)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/cart/items/a/increment", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("increment status=%d", resp.StatusCode)
	}
	if items := decodeItems(t, raw); items[0].Quantity != 2 {
		t.Fatalf("after increment: %+v", items)
	}

	doJSON(t, http.MethodPost, base+"/cart/items/a/decrement", nil, nil)
	resp, raw = doJSON(t, http.MethodPost, base+"/cart/items/a/decrement?wait=true", nil, nil)
	if items := decodeItems(t, raw); items[0].Quantity != 0 {
		t.Fatalf("after decrements: %+v", items)
	}

	resp, raw = doJSON(t, http.MethodPost, base+"/cart/items", map[string]any{"id": "a", "title": "Again"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate add status=%d", resp.StatusCode)
	}
	if items := decodeItems(t, raw); len(items) != 1 || items[0].Title != "Shoe" {
		t.Fatalf("duplicate add changed cart: %+v", items)
	}

	stored, ok, _ := env.slot.Get(context.Background(), SnapshotKey)
	if !ok || !strings.Contains(stored, `"quantity":0`) {
		t.Fatalf("snapshot=%q", stored)
	}
}

func TestCartAPI_BadInput(t *testing.T) {
	env := newTestEnv(t, nil, "")

	resp, _ := doJSON(t, http.MethodPost, env.ts.URL+"/cart/items", map[string]any{"title": "no id"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/cart/items", map[string]any{"id": "a", "color": "red"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d", resp.StatusCode)
	}
}

func TestCartAPI_MalformedSnapshot(t *testing.T) {
	env := newTestEnv(t, nil, "")
	_ = env.slot.Set(context.Background(), SnapshotKey, "garbage")

	resp, raw := doJSON(t, http.MethodGet, env.ts.URL+"/cart", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%s", resp.StatusCode, raw)
	}
}

func TestCartAPI_DeviceTokens(t *testing.T) {
	tm := auth.NewTokenMaker("test-secret")
	env := newTestEnv(t, tm, "")
	base := env.ts.URL

	resp, _ := doJSON(t, http.MethodGet, base+"/cart", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token status=%d", resp.StatusCode)
	}

	var dev struct {
		DeviceID    string `json:"device_id"`
		AccessToken string `json:"access_token"`
	}
	resp, raw := doJSON(t, http.MethodPost, base+"/devices", nil, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("device status=%d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &dev); err != nil {
		t.Fatalf("decode device: %v", err)
	}
	hdr := map[string]string{"Authorization": "Bearer " + dev.AccessToken}

	resp, raw = doJSON(t, http.MethodPost, base+"/cart/items?wait=true", map[string]any{"id": "a", "title": "Shoe", "price": 10}, hdr)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", resp.StatusCode, raw)
	}

	if _, ok, _ := env.slot.Get(context.Background(), KeyFor(dev.DeviceID)); !ok {
		t.Fatalf("device cart not stored under its own key")
	}
	if _, ok, _ := env.slot.Get(context.Background(), SnapshotKey); ok {
		t.Fatalf("device cart leaked into the anonymous key")
	}
}

func TestCartAPI_AddFromCatalog(t *testing.T) {
	catTS := httptest.NewServer(catalog.NewHandler(
		&catalog.Server{Store: catalog.NewMemStore()},
		catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"},
	))
	t.Cleanup(catTS.Close)

	env := newTestEnv(t, nil, catTS.URL)

	resp, raw := doJSON(t, http.MethodPost, env.ts.URL+"/cart/products/p2", nil, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status=%d body=%s", resp.StatusCode, raw)
	}
	items := decodeItems(t, raw)
	if len(items) != 1 || items[0].ID != "p2" || items[0].Title == "" || items[0].ImageURL == "" || items[0].Quantity != 1 {
		t.Fatalf("items=%+v", items)
	}

	resp, _ = doJSON(t, http.MethodPost, env.ts.URL+"/cart/products/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown product status=%d", resp.StatusCode)
	}
}

func TestCartAPI_Events(t *testing.T) {
	env := newTestEnv(t, nil, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/cart/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	events := make(chan []LineItem, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var cr cartResp
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cr) == nil {
				events <- cr.Items
			}
		}
	}()

	select {
	case items := <-events:
		if len(items) != 0 {
			t.Fatalf("initial event=%+v", items)
		}
	case <-ctx.Done():
		t.Fatalf("no initial event")
	}

	doJSON(t, http.MethodPost, env.ts.URL+"/cart/items", map[string]any{"id": "a", "title": "Shoe"}, nil)

	for {
		select {
		case items := <-events:
			if len(items) == 1 && items[0].ID == "a" {
				return
			}
		case <-ctx.Done():
			t.Fatalf("no event after add")
		}
	}
}

func TestCartAPI_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil, "")

	resp, _ := doJSON(t, http.MethodGet, env.ts.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz=%d", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, env.ts.URL+"/cart/items?wait=true", map[string]any{"id": "a"}, nil)

	resp, _ = doJSON(t, http.MethodGet, env.ts.URL+"/metrics", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("metrics without token=%d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodGet, env.ts.URL+"/metrics", nil, map[string]string{"Authorization": "Bearer metrics-token"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics=%d", resp.StatusCode)
	}
	for _, name := range []string{"cart_mutations_total", "cart_snapshot_writes_total", "http_requests_total"} {
		if !strings.Contains(string(raw), name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestServer_HandlerOutsideProviderPanics(t *testing.T) {
	s := &Server{Log: zap.NewNop()}

	defer func() {
		if r := recover(); r != ErrNoProvider {
			t.Fatalf("recovered %v, want ErrNoProvider", r)
		}
	}()
	s.list(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cart", nil))
}
