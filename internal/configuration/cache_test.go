package configuration

import (
	"testing"

	"pluginhub/internal/orchestrations"
	"pluginhub/internal/selection"
)

func TestCacheDiscardsStaleFocus(t *testing.T) {
	cache := NewCache()

	first := cache.begin(SlotExtractor)
	second := cache.begin(SlotExtractor)

	if !cache.setFocused(SlotExtractor, second, orchestrations.Configuration{"name": "tap-new"}) {
		t.Fatalf("expected latest response to apply")
	}
	if cache.setFocused(SlotExtractor, first, orchestrations.Configuration{"name": "tap-old"}) {
		t.Fatalf("expected stale response to be discarded")
	}
	if got := cache.Focused(SlotExtractor).Name(); got != "tap-new" {
		t.Fatalf("focused = %q, want tap-new", got)
	}
}

func TestClearFocusedInvalidatesInFlight(t *testing.T) {
	cache := NewCache()

	seq := cache.begin(SlotLoader)
	cache.ClearFocused(SlotLoader)

	if cache.setFocused(SlotLoader, seq, orchestrations.Configuration{"name": "target-csv"}) {
		t.Fatalf("expected response issued before clear to be discarded")
	}
	if got := cache.Focused(SlotLoader); len(got) != 0 {
		t.Fatalf("expected empty loader focus, got %v", got)
	}
}

func TestStaleEntityFailureDoesNotRaiseFlag(t *testing.T) {
	cache := NewCache()

	stale := cache.beginEntities()
	latest := cache.beginEntities()

	if cache.failEntities(stale) {
		t.Fatalf("expected stale failure to be ignored")
	}
	if cache.HasEntityError() {
		t.Fatalf("error flag raised by stale failure")
	}
	if !cache.setEntities(latest, &selection.EntityTree{ExtractorName: "tap-x"}) {
		t.Fatalf("expected latest listing to apply")
	}
}

func TestFocusedReturnsCopy(t *testing.T) {
	cache := NewCache()
	seq := cache.begin(SlotExtractor)
	cache.setFocused(SlotExtractor, seq, orchestrations.Configuration{"name": "tap-x"})

	copied := cache.Focused(SlotExtractor)
	copied["name"] = "changed"

	if got := cache.Focused(SlotExtractor).Name(); got != "tap-x" {
		t.Fatalf("cache mutated through copy: %q", got)
	}
}

func TestSlotCollectionType(t *testing.T) {
	if SlotExtractor.CollectionType() != orchestrations.Extractors {
		t.Errorf("extractor slot maps to %s", SlotExtractor.CollectionType())
	}
	if SlotLoader.CollectionType() != orchestrations.Loaders {
		t.Errorf("loader slot maps to %s", SlotLoader.CollectionType())
	}
}
