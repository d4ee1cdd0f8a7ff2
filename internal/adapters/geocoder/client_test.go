package geocoder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"neighborhood_directory/internal/adapters/geocoder"
)

func TestClient_Geocode_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("q") != "Rua das Flores, 10" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(503)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"lat":"-23.5505","lon":"-46.6333","display_name":"São Paulo"}]`))
		}
	}))
	defer ts.Close()

	cl, err := geocoder.New(ts.URL, 100)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.Geocode(ctx, "Rua das Flores, 10")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Lat != -23.5505 || got.Lon != -46.6333 {
		t.Fatalf("unexpected coords: %+v", got)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 calls due to retries, got %d", hits)
	}
}

func TestClient_Geocode_NoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	cl, _ := geocoder.New(ts.URL, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cl.Geocode(ctx, "nowhere"); err != geocoder.ErrNoMatch {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestClient_Geocode_ContextCanceledDuringBackoff(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "10")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	cl, _ := geocoder.New(ts.URL, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := cl.Geocode(ctx, "x"); err == nil {
		t.Fatalf("expected error when context expires")
	}
}

func TestNew_RequiresBase(t *testing.T) {
	if _, err := geocoder.New("", 1); err == nil {
		t.Fatalf("expected error for empty base")
	}
}
