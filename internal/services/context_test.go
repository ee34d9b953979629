package services_test

import (
	"context"
	"testing"

	"llmclass/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithPipeline(ctx, "text")
	ctx = services.WithItem(ctx, "12-3")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if p, ok := services.PipelineFromContext(ctx); !ok || p != "text" {
		t.Fatalf("unexpected pipeline: %v %v", p, ok)
	}
	if item, ok := services.ItemFromContext(ctx); !ok || item != "12-3" {
		t.Fatalf("unexpected item: %v %v", item, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithPipeline(context.Background(), "")
	if _, ok := services.PipelineFromContext(ctx); ok {
		t.Fatal("expected no pipeline value")
	}
}
