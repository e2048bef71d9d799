// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"math/rand"

	"github.com/acasagrande/races-core/archive"
)

// Tour produces bounded-memory random tours over a snapshot of a
// bucket: each tour visits every value exactly once, using only a
// fixed chunk of memory at a time regardless of the bucket's size.
// Chunks are consecutive runs of values read from the tour's starting
// position onwards, wrapping around once; each step picks uniformly
// among the unvisited values of the currently cached chunk.
//
// If the referred bucket is written to after a Tour or one of its
// iterators has been created, the tour's behavior is undefined.
type Tour[V any] struct {
	reader   *Reader[V]
	rng      *rand.Rand
	cacheCap int // max cached record count, always >= 1
}

// newTour seeds the tour's own generator from one draw of rng, so the
// tour's sequence is fixed at construction time and is independent of
// any further use of the caller's rng.
func newTour[V any](r *Reader[V], rng *rand.Rand, cacheBytes int) (*Tour[V], error) {
	cap, _ := recordCapacity[V](r.codec, cacheBytes)
	if cap <= 0 {
		return nil, ErrOutOfRange
	}
	tourRng := rand.New(rand.NewSource(rng.Int63()))
	return &Tour[V]{reader: r, rng: tourRng, cacheCap: cap}, nil
}

// Begin starts a new tour iterator. When the bucket's codec is a
// FixedSizeCodec, the tour's starting position is drawn uniformly at
// random over the bucket's values; otherwise the tour starts, like a
// plain forward scan, from the first value, since there is no way to
// address an arbitrary value's byte offset directly.
func (t *Tour[V]) Begin() (*TourIterator[V], error) {
	if t.reader.size == 0 {
		return &TourIterator[V]{reader: t.reader, rng: t.rng, cacheCap: t.cacheCap}, nil
	}
	beginPos := t.reader.dataOffset
	if fc, ok := t.reader.codec.(FixedSizeCodec[V]); ok {
		idx := t.rng.Int63n(int64(t.reader.size))
		beginPos = t.reader.dataOffset + idx*int64(fc.Size())
	}
	return newTourIterator(t.reader, t.rng, beginPos, t.cacheCap)
}

// TourIterator iterates a bucket's values in the randomized order of
// a single Tour. It is not safe for concurrent use.
type TourIterator[V any] struct {
	reader     *Reader[V]
	rng        *rand.Rand
	cacheCap   int
	cache      []V
	initialPos int64
	readPos    int64
	available  int
	iterated   int
}

// loadBuffer fills up to n values starting at *readPos, wrapping
// around to the bucket's first value when it reaches end of file. It
// stops as soon as *readPos reaches finalPos a second time: the first
// time is permitted only when init is true, which lets a tour begun
// mid-file sweep once all the way around back to its own start.
func loadBuffer[V any](reader *Reader[V], n int, readPos *int64, finalPos int64, init bool) ([]V, error) {
	a, err := archive.Open(reader.path)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	if *readPos < reader.dataOffset {
		*readPos = reader.dataOffset
	}
	if finalPos < reader.dataOffset {
		finalPos = *readPos
	}
	if err := a.Seek(*readPos); err != nil {
		return nil, err
	}
	fileSize, err := a.Size()
	if err != nil {
		return nil, err
	}

	values := make([]V, 0, n)
	for i := 0; i < n; i++ {
		if *readPos == fileSize {
			*readPos = reader.dataOffset
			if err := a.Seek(*readPos); err != nil {
				return values, err
			}
		}
		if finalPos == *readPos {
			if !init {
				return values, nil
			}
			init = false
		}
		v, err := reader.codec.Decode(a)
		if err != nil {
			return values, err
		}
		values = append(values, v)
		pos, err := a.Tell()
		if err != nil {
			return values, err
		}
		*readPos = pos
	}
	return values, nil
}

func newTourIterator[V any](reader *Reader[V], rng *rand.Rand, initialPos int64, cacheCap int) (*TourIterator[V], error) {
	it := &TourIterator[V]{
		reader:     reader,
		rng:        rng,
		cacheCap:   cacheCap,
		initialPos: initialPos,
		readPos:    initialPos,
	}
	values, err := loadBuffer(reader, cacheCap, &it.readPos, it.initialPos, true)
	if err != nil {
		return nil, err
	}
	it.cache = values
	it.available = len(values)
	it.selectValue()
	return it, nil
}

// selectValue picks a uniformly random value among the it.available
// ones still unvisited in the cache and moves it to the last active
// slot, where Value reads it from.
func (it *TourIterator[V]) selectValue() {
	if it.available == 0 {
		return
	}
	pos := 0
	if it.available > 1 {
		pos = it.rng.Intn(it.available)
	}
	last := it.available - 1
	it.cache[pos], it.cache[last] = it.cache[last], it.cache[pos]
	it.iterated++
}

// IsEnd reports whether the tour has visited every value. Note that
// reaching this state consumes one extra step of iterated beyond the
// value count, which RemainingValues accounts for.
func (it *TourIterator[V]) IsEnd() bool {
	return it.available == 0 && it.readPos == it.initialPos
}

// Value returns the value at the iterator's current position. It
// fails with ErrTourEnded once the tour is exhausted.
func (it *TourIterator[V]) Value() (V, error) {
	var zero V
	if it.IsEnd() {
		return zero, ErrTourEnded
	}
	return it.cache[it.available-1], nil
}

// Advance moves the iterator to its next randomized position. It is a
// no-op once the tour has ended.
func (it *TourIterator[V]) Advance() error {
	if it.IsEnd() {
		return nil
	}
	if it.available > 0 {
		it.available--
	}
	if it.available == 0 && it.readPos != it.initialPos {
		values, err := loadBuffer(it.reader, it.cacheCap, &it.readPos, it.initialPos, false)
		if err != nil {
			return err
		}
		it.cache = values
		it.available = len(values)
	}
	if it.IsEnd() {
		it.iterated++
	} else {
		it.selectValue()
	}
	return nil
}

// ReachedValues returns how many values the tour has visited so far.
func (it *TourIterator[V]) ReachedValues() int { return it.iterated }

// RemainingValues returns how many values remain before the tour ends.
// The tour's terminal state counts as one extra step beyond the
// bucket's size, so a freshly-begun tour over n values reports n, not
// n-1, immediately after its first value has been reached.
func (it *TourIterator[V]) RemainingValues() int {
	return int(it.reader.size) + 1 - it.iterated
}

// Equal reports whether two iterators refer to the same position
// within a tour over the same bucket. Any two ended iterators compare
// equal to each other, regardless of how they reached that state.
func (it *TourIterator[V]) Equal(other *TourIterator[V]) bool {
	if it.IsEnd() || other.IsEnd() {
		return it.IsEnd() && other.IsEnd()
	}
	return it.reader.path == other.reader.path &&
		it.readPos == other.readPos &&
		it.initialPos == other.initialPos &&
		it.available == other.available
}
