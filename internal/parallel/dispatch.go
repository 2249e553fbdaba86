package parallel

import (
	"golang.org/x/exp/constraints"
)

// CeilDiv returns the number of groups of size d needed to cover n items.
// It returns 0 when n is not positive.
func CeilDiv[T constraints.Integer](n, d T) T {
	if n <= 0 {
		return 0
	}
	q := n / d
	if n%d != 0 {
		q++
	}
	return q
}

// NextMultipleOf rounds x up to the next multiple of y.
func NextMultipleOf[T constraints.Integer](x, y T) T {
	return CeilDiv(x, y) * y
}

// Batch is one stage dispatch: Items work items partitioned into groups of
// GroupSize, each item executed by Item.
//
// Item(i) must write only output slot i. No synchronization happens inside
// a batch.
type Batch struct {
	Items     int
	GroupSize int
	Item      func(i int)
}

// Groups returns the number of dispatch groups, so that
// Groups()*GroupSize >= Items.
func (b Batch) Groups() int {
	if b.GroupSize <= 0 {
		panic("parallel: group size must be positive")
	}
	return CeilDiv(b.Items, b.GroupSize)
}

// appendGroups appends one closure per dispatch group to work.
func (b Batch) appendGroups(work []func()) []func() {
	groups := b.Groups()
	for g := range groups {
		base := g * b.GroupSize
		work = append(work, func() {
			for local := range b.GroupSize {
				i := base + local
				// Tail of the final group.
				if i >= b.Items {
					return
				}
				b.Item(i)
			}
		})
	}
	return work
}

// Dispatch runs the groups of all batches concurrently and returns once every
// group has completed. Batches passed together must not depend on each other;
// dependent stages go in separate Dispatch calls.
func (p *WorkerPool) Dispatch(batches ...Batch) {
	total := 0
	for _, b := range batches {
		total += b.Groups()
	}
	if total == 0 {
		return
	}

	work := make([]func(), 0, total)
	for _, b := range batches {
		work = b.appendGroups(work)
	}
	p.ExecuteAll(work)
}
