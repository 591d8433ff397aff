package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := s.Store(ctx, "uploads/u1/report.txt", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, err := s.Fetch(ctx, "uploads/u1/report.txt")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestFileStore_StoreOverwrites(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := s.Store(ctx, "a.txt", []byte("v1"), "text/plain"); err != nil {
		t.Fatalf("store v1: %v", err)
	}
	// a retried job re-uploads to the same derived path
	if err := s.Store(ctx, "a.txt", []byte("v2"), "text/plain"); err != nil {
		t.Fatalf("store v2: %v", err)
	}
	got, _ := s.Fetch(ctx, "a.txt")
	if string(got) != "v2" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Store(context.Background(), "../escape.txt", []byte("x"), ""); err == nil {
		t.Fatalf("expected traversal rejection")
	}
}
