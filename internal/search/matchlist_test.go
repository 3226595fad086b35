package search

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func batchOf(version uint64, lines ...int) Batch {
	b := Batch{Version: version}
	for _, l := range lines {
		b.Matches = append(b.Matches, Match{Line: l, Version: version})
	}
	return b
}

func TestMatchListMergeSortsAndDedups(t *testing.T) {
	l := NewMatchList()
	l.Merge(batchOf(1, 20, 21))
	l.Merge(batchOf(1, 0, 5))
	l.Merge(batchOf(1, 10))
	if l.Merge(batchOf(1, 5, 20)) {
		t.Fatal("Merge of duplicate lines reported a change")
	}

	want := []int{0, 5, 10, 20, 21}
	if diff := cmp.Diff(want, l.Lines()); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchListMergeIsIdempotent(t *testing.T) {
	l := NewMatchList()
	b := batchOf(3, 1, 4, 9)
	l.Merge(b)
	first := l.Snapshot()
	l.Merge(b)
	if diff := cmp.Diff(first, l.Snapshot()); diff != "" {
		t.Fatalf("second Merge changed the list (-want +got):\n%s", diff)
	}
}

func TestMatchListDiscardsStaleVersions(t *testing.T) {
	l := NewMatchList()
	l.Merge(batchOf(2, 7))
	if l.Merge(batchOf(1, 3)) {
		t.Fatal("Merge of older version reported a change")
	}
	if diff := cmp.Diff([]int{7}, l.Lines()); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}
	merged, discarded := l.Counters()
	if merged != 1 || discarded != 1 {
		t.Fatalf("Counters() = %d, %d, want 1, 1", merged, discarded)
	}
}

func TestMatchListResetRaisesFloor(t *testing.T) {
	l := NewMatchList()
	l.Merge(batchOf(1, 1, 2, 3))

	v := l.Reset(func() uint64 { return 2 })
	if v != 2 {
		t.Fatalf("Reset() = %d, want 2", v)
	}
	if n := l.Len(); n != 0 {
		t.Fatalf("Len() after Reset = %d, want 0", n)
	}

	// a version-1 batch still in flight must not repopulate the list
	l.Merge(batchOf(1, 4))
	if n := l.Len(); n != 0 {
		t.Fatalf("Len() after stale merge = %d, want 0", n)
	}

	l.Merge(batchOf(2, 8))
	if diff := cmp.Diff([]int{8}, l.Lines()); diff != "" {
		t.Fatalf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchListArrivalOrderIrrelevant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	var batches []Batch
	want := map[int]bool{}
	for i := 0; i < 200; i++ {
		var lines []int
		n := rng.Intn(6)
		for j := 0; j < n; j++ {
			line := rng.Intn(1000)
			lines = append(lines, line)
			want[line] = true
		}
		slices.Sort(lines)
		batches = append(batches, batchOf(1, lines...))
	}
	wantLines := make([]int, 0, len(want))
	for line := range want {
		wantLines = append(wantLines, line)
	}
	slices.Sort(wantLines)

	for round := 0; round < 5; round++ {
		rng.Shuffle(len(batches), func(i, j int) { batches[i], batches[j] = batches[j], batches[i] })
		l := NewMatchList()
		for _, b := range batches {
			l.Merge(b)
		}
		if diff := cmp.Diff(wantLines, l.Lines()); diff != "" {
			t.Fatalf("round %d: Lines() mismatch (-want +got):\n%s", round, diff)
		}
	}
}

func TestMatchListSnapshotIsCopy(t *testing.T) {
	l := NewMatchList()
	l.Merge(batchOf(1, 1))
	snap := l.Snapshot()
	snap[0].Line = 99
	if got := l.Lines(); got[0] != 1 {
		t.Fatalf("list mutated through snapshot: %v", got)
	}
}
