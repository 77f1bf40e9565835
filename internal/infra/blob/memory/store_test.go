package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"metacore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"table": "t1"}
	if _, err := s.Put(ctx, "a/1", strings.NewReader("one"), core.PutOptions{Metadata: meta}); err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["table"] = "mutated"
	if _, err := s.Put(ctx, "a/1", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, "b/2", strings.NewReader("two"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}

	info, rc, err := s.Get(ctx, "a/1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != "one" || info.Metadata["table"] != "t1" {
		t.Fatalf("unexpected blob %q %+v", body, info)
	}

	list, _ := s.List(ctx, "a/")
	if len(list) != 1 || list[0].Key != "a/1" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "a/1"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if _, err := s.Head(ctx, "a/1"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "b/2", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
