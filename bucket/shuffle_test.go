// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func readAllUint64(t *testing.T, path string) []uint64 {
	t.Helper()
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	it, err := r.Iterate()
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	var got []uint64
	for {
		v, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, v)
	}
	return got
}

func assertPermutationOf(t *testing.T, got []uint64, n int) {
	t.Helper()
	if len(got) != n {
		t.Fatalf("got %d values, want %d", len(got), n)
	}
	seen := make([]bool, n)
	for _, v := range got {
		if v >= uint64(n) || seen[v] {
			t.Fatalf("value %d is not a valid permutation entry (n=%d)", v, n)
		}
		seen[v] = true
	}
}

// TestShuffleInMemory covers scenario S2: populate 1000 sequential
// u64, shuffle with a buffer large enough for the in-memory strategy,
// and check the result is a permutation.
func TestShuffleInMemory(t *testing.T) {
	const n = 1000
	path := filepath.Join(t.TempDir(), "bucket.bin")
	w, err := Create[uint64](path, Uint64Codec{}, 8*64)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < n; i++ {
		if err := w.PushBack(i); err != nil {
			t.Fatal(err)
		}
	}
	rng := rand.New(rand.NewSource(0))
	if err := w.Shuffle(rng, 8*n, "", nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got := readAllUint64(t, path)
	assertPermutationOf(t, got, n)

	inOrder := true
	for i, v := range got {
		if v != uint64(i) {
			inOrder = false
			break
		}
	}
	if inOrder {
		t.Fatal("shuffle left the sequence in its original order")
	}
}

// TestShuffleExternal covers scenario S3: populate 10000 u64, shuffle
// with a small buffer forcing the external random-chunk-partition
// strategy, and check the result is a permutation and that no
// temporary files remain.
func TestShuffleExternal(t *testing.T) {
	const n = 10000
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bucket.bin")
	w, err := Create[uint64](path, Uint64Codec{}, 8*64)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < n; i++ {
		if err := w.PushBack(i); err != nil {
			t.Fatal(err)
		}
	}
	rng := rand.New(rand.NewSource(1))
	// buffer = 32 bytes => chunk_size = (32/2)/8 = 2 records per chunk.
	var progressCalls int
	var lastDone, lastTotal int
	if err := w.Shuffle(rng, 32, tmpDir, func(done, total int) {
		progressCalls++
		lastDone, lastTotal = done, total
	}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if progressCalls == 0 {
		t.Error("onProgress was never called during an external-memory shuffle")
	}
	if lastDone != lastTotal {
		t.Errorf("final onProgress call reported %d/%d, want done == total", lastDone, lastTotal)
	}

	got := readAllUint64(t, path)
	assertPermutationOf(t, got, n)

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != filepath.Base(path) {
			t.Errorf("leftover temporary file: %s", e.Name())
		}
	}
}

// TestShuffleEmptyIsNoOp covers the contract that shuffle is a no-op
// for an empty bucket.
func TestShuffleEmptyIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.bin")
	w, err := Create[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(2))
	if err := w.Shuffle(rng, 16, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := Open[uint64](path, Uint64Codec{}, 64)
	if err != nil {
		t.Fatal(err)
	}
	if r.Size() != 0 {
		t.Fatalf("got size %d, want 0", r.Size())
	}
}

// TestShuffleRestoresCacheCapacity checks that the writer's cache
// capacity after a shuffle matches what it was before, per section
// 4.2's "on completion the original cache capacity is restored".
func TestShuffleRestoresCacheCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bucket.bin")
	w, err := Create[uint64](path, Uint64Codec{}, 80)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < 20; i++ {
		if err := w.PushBack(i); err != nil {
			t.Fatal(err)
		}
	}
	before := w.cacheCap
	rng := rand.New(rand.NewSource(3))
	if err := w.Shuffle(rng, 16, t.TempDir(), nil); err != nil {
		t.Fatal(err)
	}
	if w.cacheCap != before {
		t.Errorf("cache capacity after shuffle = %d, want %d", w.cacheCap, before)
	}
	w.Close()
}
