package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jibbs1703/Retail-Chat-Agent/internal/cache"
)

func TestSessionContextRoundTrip(t *testing.T) {
	svc, err := NewSessionService(newTestLogger(t), cache.NewMemoryCache())
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	ctx := context.Background()

	blob := json.RawMessage(`{"last_query":"red shoe","budget":200}`)
	if err := svc.SetContext(ctx, "session-1", blob); err != nil {
		t.Fatalf("SetContext: %v", err)
	}

	got, err := svc.GetContext(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("context blob: want=%s got=%s", blob, got)
	}

	if _, err := svc.GetContext(ctx, "session-unknown"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestSessionRejectsInvalidJSON(t *testing.T) {
	svc, err := NewSessionService(newTestLogger(t), cache.NewMemoryCache())
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	if err := svc.SetContext(context.Background(), "session-1", json.RawMessage(`{broken`)); err == nil {
		t.Fatalf("expected error for invalid JSON blob")
	}
}
