package parallel

import (
	"sync/atomic"
	"testing"
)

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		n, d, want int
	}{
		{0, 64, 0},
		{-3, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{1024, 1024, 1},
		{1025, 1024, 2},
		{7, 1, 7},
	}
	for _, tt := range tests {
		if got := CeilDiv(tt.n, tt.d); got != tt.want {
			t.Errorf("CeilDiv(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}

	if got := CeilDiv[uint32](100, 64); got != 2 {
		t.Errorf("CeilDiv[uint32](100, 64) = %d, want 2", got)
	}
}

func TestNextMultipleOf(t *testing.T) {
	tests := []struct {
		x, y, want uint64
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{13, 16, 16},
		{17, 16, 32},
	}
	for _, tt := range tests {
		if got := NextMultipleOf(tt.x, tt.y); got != tt.want {
			t.Errorf("NextMultipleOf(%d, %d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestBatch_Groups(t *testing.T) {
	tests := []struct {
		items, size, want int
	}{
		{0, 8, 0},
		{1, 8, 1},
		{8, 8, 1},
		{9, 8, 2},
		{1000, 1024, 1},
		{3000, 1024, 3},
	}
	for _, tt := range tests {
		b := Batch{Items: tt.items, GroupSize: tt.size}
		got := b.Groups()
		if got != tt.want {
			t.Errorf("Batch{%d, %d}.Groups() = %d, want %d", tt.items, tt.size, got, tt.want)
		}
		if got*tt.size < tt.items {
			t.Errorf("groups*size = %d < items %d", got*tt.size, tt.items)
		}
	}
}

func TestBatch_GroupsInvalidSize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Groups() with zero group size should panic")
		}
	}()
	Batch{Items: 4}.Groups()
}

// TestDispatch_EveryItemOnce checks that each index below Items runs exactly
// once, and that the padding items of the last group never run.
func TestDispatch_EveryItemOnce(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	for _, tc := range []struct {
		items, size int
	}{
		{1, 1},
		{10, 3},
		{1000, 64},
		{1023, 1024},
		{1025, 1024},
	} {
		hits := make([]atomic.Int32, tc.items+tc.size)
		pool.Dispatch(Batch{
			Items:     tc.items,
			GroupSize: tc.size,
			Item:      func(i int) { hits[i].Add(1) },
		})

		for i := range hits {
			want := int32(0)
			if i < tc.items {
				want = 1
			}
			if got := hits[i].Load(); got != want {
				t.Fatalf("items=%d size=%d: index %d ran %d times, want %d",
					tc.items, tc.size, i, got, want)
			}
		}
	}
}

func TestDispatch_ConcurrentBatches(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	a := make([]int, 100)
	b := make([]int, 37)

	pool.Dispatch(
		Batch{Items: len(a), GroupSize: 16, Item: func(i int) { a[i] = i * 2 }},
		Batch{Items: len(b), GroupSize: 5, Item: func(i int) { b[i] = i + 7 }},
	)

	for i, v := range a {
		if v != i*2 {
			t.Fatalf("a[%d] = %d, want %d", i, v, i*2)
		}
	}
	for i, v := range b {
		if v != i+7 {
			t.Fatalf("b[%d] = %d, want %d", i, v, i+7)
		}
	}
}

func TestDispatch_Empty(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	called := false
	pool.Dispatch()
	pool.Dispatch(Batch{Items: 0, GroupSize: 8, Item: func(int) { called = true }})
	if called {
		t.Error("empty batch executed an item")
	}
}

func BenchmarkDispatch_100k(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	out := make([]float32, 100_000)
	batch := Batch{
		Items:     len(out),
		GroupSize: 1024,
		Item:      func(i int) { out[i] = float32(i) * 0.5 },
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Dispatch(batch)
	}
}
