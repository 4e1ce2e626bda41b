package services_test

import (
	"context"
	"testing"

	"cardplay/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithScanID(ctx, "A1")
	ctx = services.WithSource(ctx, "device")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ScanIDFromContext(ctx); !ok || id != "A1" {
		t.Fatalf("unexpected scan id: %v %v", id, ok)
	}
	if source, ok := services.SourceFromContext(ctx); !ok || source != "device" {
		t.Fatalf("unexpected source: %v %v", source, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithScanID(ctx, "")
	ctx = services.WithSource(ctx, "")
	if _, ok := services.ScanIDFromContext(ctx); ok {
		t.Fatal("expected no scan id value")
	}
	if _, ok := services.SourceFromContext(ctx); ok {
		t.Fatal("expected no source value")
	}
}
