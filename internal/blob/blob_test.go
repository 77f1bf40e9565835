package blob

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{FSRoot: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverMemory}, DriverMemory},
		{Config{Driver: DriverS3, S3: S3Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestKeys(t *testing.T) {
	if got := SourceKey("t1", `C:\data\plasma.sdrf.tsv`); got != "sources/t1/plasma.sdrf.tsv" {
		t.Fatalf("unexpected source key %s", got)
	}
	at := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	got := ExportKey("t1", at, ".tsv.gz")
	if !strings.HasPrefix(got, "exports/t1/20260304T050607") || !strings.HasSuffix(got, ".tsv.gz") {
		t.Fatalf("unexpected export key %s", got)
	}
}
