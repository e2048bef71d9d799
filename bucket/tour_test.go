// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"math/rand"
	"testing"
)

// TestTourVisitsEveryValueOnce covers invariant 4: successively
// dereferencing and advancing a tour over a bucket of size n yields
// exactly n distinct values forming a permutation of the bucket
// contents, and is_end() holds after the n-th advance.
func TestTourVisitsEveryValueOnce(t *testing.T) {
	const n = 37
	path := writeSequentialBucket(t, n)
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(11))
	tour, err := r.RandomTour(rng, 5*8)
	if err != nil {
		t.Fatal(err)
	}
	it, err := tour.Begin()
	if err != nil {
		t.Fatal(err)
	}

	seen := make([]bool, n)
	count := 0
	for !it.IsEnd() {
		v, err := it.Value()
		if err != nil {
			t.Fatal(err)
		}
		if v >= n || seen[v] {
			t.Fatalf("value %d is not a fresh element of the bucket (n=%d)", v, n)
		}
		seen[v] = true
		count++
		if err := it.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if count != n {
		t.Fatalf("visited %d values, want %d", count, n)
	}
	for i, s := range seen {
		if !s {
			t.Errorf("value %d was never visited", i)
		}
	}
	if _, err := it.Value(); err != ErrTourEnded {
		t.Fatalf("got %v, want ErrTourEnded", err)
	}
}

// TestTourRemainingAccounting reproduces the off-by-one reported in
// section 9: remaining == size+1-iterated at every step, including
// the terminal state where remaining reaches 0 only after the
// (n+1)-th increment of iterated.
func TestTourRemainingAccounting(t *testing.T) {
	const n = 5
	path := writeSequentialBucket(t, n)
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(3))
	tour, err := r.RandomTour(rng, 2*8)
	if err != nil {
		t.Fatal(err)
	}
	it, err := tour.Begin()
	if err != nil {
		t.Fatal(err)
	}

	if it.ReachedValues() != 1 {
		t.Fatalf("reached = %d after begin, want 1", it.ReachedValues())
	}
	if it.RemainingValues() != n {
		t.Fatalf("remaining = %d after begin, want %d", it.RemainingValues(), n)
	}
	for i := 0; i < n-1; i++ {
		if err := it.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if it.IsEnd() {
		t.Fatal("tour ended before its n-th advance")
	}
	if it.RemainingValues() != 1 {
		t.Fatalf("remaining = %d before final advance, want 1", it.RemainingValues())
	}
	if err := it.Advance(); err != nil {
		t.Fatal(err)
	}
	if !it.IsEnd() {
		t.Fatal("tour did not end after its n-th advance")
	}
	if it.RemainingValues() != 0 {
		t.Fatalf("remaining = %d at end, want 0", it.RemainingValues())
	}
}

// TestTourFirstValueUniformity covers scenario S4: for a bucket of 4
// constant-size records, the first value of repeated fresh tours
// (one per seed) is approximately uniform over the 4 positions.
func TestTourFirstValueUniformity(t *testing.T) {
	const n = 4
	const trials = 4000
	path := writeSequentialBucket(t, n)
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}

	var counts [n]int
	for seed := 0; seed < trials; seed++ {
		rng := rand.New(rand.NewSource(int64(seed)))
		tour, err := r.RandomTour(rng, n*8)
		if err != nil {
			t.Fatal(err)
		}
		it, err := tour.Begin()
		if err != nil {
			t.Fatal(err)
		}
		v, err := it.Value()
		if err != nil {
			t.Fatal(err)
		}
		counts[v]++
	}

	expected := float64(trials) / n
	chiSquare := 0.0
	for _, c := range counts {
		d := float64(c) - expected
		chiSquare += d * d / expected
	}
	// 99th percentile of chi-square with 3 degrees of freedom is ~11.34.
	const threshold = 11.34
	if chiSquare > threshold {
		t.Errorf("chi-square statistic %.2f exceeds 99th percentile %.2f; counts=%v", chiSquare, threshold, counts)
	}
}

// TestTourOverSingleChunk exercises the common degenerate case where
// the whole bucket fits in one cache chunk.
func TestTourOverSingleChunk(t *testing.T) {
	path := writeSequentialBucket(t, 3)
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(5))
	tour, err := r.RandomTour(rng, 64)
	if err != nil {
		t.Fatal(err)
	}
	it, err := tour.Begin()
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for !it.IsEnd() {
		if _, err := it.Value(); err != nil {
			t.Fatal(err)
		}
		count++
		if err := it.Advance(); err != nil {
			t.Fatal(err)
		}
	}
	if count != 3 {
		t.Fatalf("visited %d values, want 3", count)
	}
}

func TestTourRejectsZeroCapacityCache(t *testing.T) {
	path := writeSequentialBucket(t, 3)
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))
	if _, err := r.RandomTour(rng, 0); err != ErrOutOfRange {
		t.Fatalf("got %v, want ErrOutOfRange", err)
	}
}
