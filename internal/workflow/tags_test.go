package workflow_test

import (
	"context"
	"testing"

	"paperling/internal/logging"
	"paperling/internal/testsupport"
	"paperling/internal/workflow"
)

func TestTagResolverMatchesNormalizedNamesAndCaches(t *testing.T) {
	fake := testsupport.NewFakePaperless(t, testAuth)
	fake.AddTag(3, "Re\u0301sume\u0301")
	resolver := workflow.NewTagResolver(fake.Client(t), "R\u00e9sum\u00e9", logging.NewNop())

	id, ok := resolver.Resolve(context.Background())
	if !ok || id != 3 {
		t.Fatalf("expected decomposed tag name to match, got %d %v", id, ok)
	}

	fake.SetDown(true)
	id, ok = resolver.Resolve(context.Background())
	if !ok || id != 3 {
		t.Fatalf("expected cached id without network access, got %d %v", id, ok)
	}
}

func TestTagResolverFollowsPaginationAndRetriesUntilFound(t *testing.T) {
	fake := testsupport.NewFakePaperless(t, testAuth)
	fake.SetPageSize(2)
	for i, name := range []string{"a", "b", "c", "d"} {
		fake.AddTag(int64(i+1), name)
	}
	resolver := workflow.NewTagResolver(fake.Client(t), "docling", nil)

	if _, ok := resolver.Resolve(context.Background()); ok {
		t.Fatal("expected missing tag to fail")
	}
	if _, ok := resolver.ID(); ok {
		t.Fatal("failed resolution must not be cached")
	}

	fake.AddTag(9, "docling")
	if id, ok := resolver.Resolve(context.Background()); !ok || id != 9 {
		t.Fatalf("expected tag on the third page to resolve, got %d %v", id, ok)
	}
}

func TestTagResolverIsCaseSensitive(t *testing.T) {
	fake := testsupport.NewFakePaperless(t, testAuth)
	fake.AddTag(1, "Docling")
	resolver := workflow.NewTagResolver(fake.Client(t), "docling", nil)
	if _, ok := resolver.Resolve(context.Background()); ok {
		t.Fatal("names are compared exactly")
	}
}
