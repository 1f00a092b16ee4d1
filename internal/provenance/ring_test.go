package provenance

import (
	"fmt"
	"testing"
)

func TestRing_BelowCapacity(t *testing.T) {
	r := NewRing(4)
	r.StoreQueried(StoreEvent{Store: "a"})
	r.StoreQueried(StoreEvent{Store: "b"})

	got := r.Recent()
	if len(got) != 2 {
		t.Fatalf("recent count = %d, want 2", len(got))
	}
	if got[0].Store.Store != "a" || got[1].Store.Store != "b" {
		t.Errorf("order = %s, %s, want a, b", got[0].Store.Store, got[1].Store.Store)
	}
}

func TestRing_Wraps(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.StoreQueried(StoreEvent{Store: fmt.Sprintf("s%d", i)})
	}

	got := r.Recent()
	if len(got) != 3 {
		t.Fatalf("recent count = %d, want capped at 3", len(got))
	}
	for i, want := range []string{"s2", "s3", "s4"} {
		if got[i].Store.Store != want {
			t.Errorf("entry %d = %s, want %s", i, got[i].Store.Store, want)
		}
	}
}

func TestRing_MixedKinds(t *testing.T) {
	r := NewRing(0) // default size
	r.StoreQueried(StoreEvent{Store: "a"})
	r.FusionApplied(FusionEvent{Strategy: "diversified", InputCount: 5, OutputCount: 3})

	got := r.Recent()
	if len(got) != 2 {
		t.Fatalf("recent count = %d, want 2", len(got))
	}
	if got[0].Kind != EntryStore || got[1].Kind != EntryFusion {
		t.Errorf("kinds = %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[1].Fusion.OutputCount != 3 {
		t.Errorf("fusion output = %d, want 3", got[1].Fusion.OutputCount)
	}
}
