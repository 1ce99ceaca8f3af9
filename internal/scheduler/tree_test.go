package scheduler

import (
	"math/rand"
	"slices"
	"testing"
	"time"
)

func TestIntervalTree_QueryBasics(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree()
	tree.Insert(1, Interval{Start: hour(9), End: hour(17)})
	tree.Insert(2, Interval{Start: hour(17), End: hour(18)})
	tree.Insert(3, Interval{Start: hour(6), End: hour(8)})

	t.Run("stab inside a single interval", func(t *testing.T) {
		got := tree.Query(Interval{Start: hour(13), End: hour(14)})
		if !slices.Equal(got, []int64{1}) {
			t.Fatalf("expected [1], got %v", got)
		}
	})

	t.Run("adjacent boundary is excluded", func(t *testing.T) {
		got := tree.Query(Interval{Start: hour(8), End: hour(9)})
		if got != nil {
			t.Fatalf("expected no hits, got %v", got)
		}
	})

	t.Run("wide query returns hits ordered by start", func(t *testing.T) {
		got := tree.Query(Interval{Start: hour(0), End: hour(24)})
		if !slices.Equal(got, []int64{3, 1, 2}) {
			t.Fatalf("expected [3 1 2], got %v", got)
		}
	})
}

func TestIntervalTree_Delete(t *testing.T) {
	t.Parallel()

	tree := NewIntervalTree()
	tree.Insert(1, Interval{Start: hour(9), End: hour(17)})
	tree.Insert(2, Interval{Start: hour(10), End: hour(12)})

	if !tree.Delete(1, Interval{Start: hour(9), End: hour(17)}) {
		t.Fatal("expected delete of entry 1 to succeed")
	}
	if tree.Delete(1, Interval{Start: hour(9), End: hour(17)}) {
		t.Fatal("expected second delete of entry 1 to fail")
	}
	if tree.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", tree.Len())
	}

	got := tree.Query(Interval{Start: hour(9), End: hour(17)})
	if !slices.Equal(got, []int64{2}) {
		t.Fatalf("expected [2], got %v", got)
	}
}

// TestIntervalTree_MatchesLinearScan cross-checks the tree against a direct
// scan over a few thousand random intervals and queries.
func TestIntervalTree_MatchesLinearScan(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	randomInterval := func() Interval {
		start := rng.Intn(24 * 60)
		length := 1 + rng.Intn(8*60)
		return Interval{
			Start: base.Add(time.Duration(start) * time.Minute),
			End:   base.Add(time.Duration(start+length) * time.Minute),
		}
	}

	tree := NewIntervalTree()
	stored := make(map[int64]Interval)
	for id := int64(1); id <= 2000; id++ {
		iv := randomInterval()
		tree.Insert(id, iv)
		stored[id] = iv
	}

	// Interleave deletions to exercise rebalancing.
	for id := int64(1); id <= 2000; id += 3 {
		if !tree.Delete(id, stored[id]) {
			t.Fatalf("failed to delete entry %d", id)
		}
		delete(stored, id)
	}

	for trial := 0; trial < 200; trial++ {
		query := randomInterval()

		var want []int64
		for id, iv := range stored {
			if Overlaps(iv, query) {
				want = append(want, id)
			}
		}
		slices.SortFunc(want, func(a, b int64) int {
			ia, ib := stored[a], stored[b]
			if !ia.Start.Equal(ib.Start) {
				if ia.Start.Before(ib.Start) {
					return -1
				}
				return 1
			}
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		})

		got := tree.Query(query)
		if !slices.Equal(got, want) {
			t.Fatalf("trial %d: tree returned %v, scan returned %v", trial, got, want)
		}
	}
}
