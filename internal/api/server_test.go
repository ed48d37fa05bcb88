package api

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestServerStartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := NewServer(Config{Port: 18743}, handler)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() returned error on graceful shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	server := NewServer(Config{Port: 18744}, http.NotFoundHandler())

	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("first Stop() error: %v", err)
	}
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error: %v", err)
	}
}
