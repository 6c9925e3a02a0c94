package kit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type payload struct {
	ID string `json:"id"`
}

func decode(body string) (payload, error) {
	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSON(httptest.NewRecorder(), req, &p)
	return p, err
}

func TestDecodeJSON(t *testing.T) {
	p, err := decode(`{"id":"a"}`)
	if err != nil || p.ID != "a" {
		t.Fatalf("p=%+v err=%v", p, err)
	}

	if _, err := decode(`{"id":"a","extra":1}`); err == nil {
		t.Fatalf("unknown field accepted")
	}
	if _, err := decode(`{"id":"a"}{"id":"b"}`); !errors.Is(err, ErrTrailingData) {
		t.Fatalf("err=%v want ErrTrailingData", err)
	}
	if _, err := decode(`{"id":"` + strings.Repeat("x", maxBodyBytes) + `"}`); err == nil {
		t.Fatalf("oversized body accepted")
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusNotFound, "not found", map[string]any{"id": "x"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var er ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if er.Error != "not found" {
		t.Fatalf("error=%q", er.Error)
	}
}
