// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package sbscontext

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/acasagrande/races-core/bucket"
	"github.com/acasagrande/races-core/index"
)

func TestReverseComplement(t *testing.T) {
	cases := map[Context]Context{
		"ACA": "TGT",
		"TCT": "AGA",
		"TGT": "ACA",
	}
	for in, want := range cases {
		if got := ReverseComplement(in); got != want {
			t.Errorf("ReverseComplement(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReverseComplementClassPairsContexts(t *testing.T) {
	p := ReverseComplementClass{}

	class := p.ClassOf("ACA")
	if len(class) != 2 {
		t.Fatalf("ClassOf(ACA) = %v, want 2 entries", class)
	}
	if !(class[0] == "ACA" && class[1] == "TGT") {
		t.Errorf("ClassOf(ACA) = %v, want [ACA TGT]", class)
	}
}

func TestReverseComplementClassSingletonForPalindrome(t *testing.T) {
	// "AT" is its own reverse complement (reverse "TA", complement "AT"):
	// no three-base context can be self-complementary since no base
	// complements to itself, but even-length ones can.
	p := ReverseComplementClass{}
	class := p.ClassOf("AT")
	if len(class) != 1 || class[0] != "AT" {
		t.Errorf("ClassOf(AT) = %v, want singleton [AT] (it is its own reverse complement)", class)
	}
}

// TestExtractFromClassDrawsFromBothStrands builds a two-key index
// ("ACA" and its reverse complement "TGT") and checks that
// ExtractFromClass treats them as a single pool: every value across
// both buckets is eventually drawn, and none is drawn twice.
func TestExtractFromClassDrawsFromBothStrands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sbs-idx")

	b, err := index.Create[Context, uint64](path, 4096, Codec{}, bucket.Uint64Codec{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, v := range []uint64{1, 2, 3} {
		if err := b.Insert("ACA", v); err != nil {
			t.Fatalf("Insert(ACA,%d): %v", v, err)
		}
	}
	for _, v := range []uint64{10, 20} {
		if err := b.Insert("TGT", v); err != nil {
			t.Fatalf("Insert(TGT,%d): %v", v, err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := index.Open[Context, uint64](path, 4096, Codec{}, bucket.Uint64Codec{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p := ReverseComplementClass{}
	rng := rand.New(rand.NewSource(7))
	seen := map[uint64]bool{}
	for i := 0; i < 5; i++ {
		_, v, err := r.ExtractFromClass(rng, p, "ACA")
		if err != nil {
			t.Fatalf("ExtractFromClass call %d: %v", i, err)
		}
		if seen[v] {
			t.Fatalf("value %d drawn twice", v)
		}
		seen[v] = true
	}
	if _, _, err := r.ExtractFromClass(rng, p, "ACA"); err != index.ErrEmptyClass {
		t.Fatalf("6th ExtractFromClass = %v, want ErrEmptyClass", err)
	}
	for _, want := range []uint64{1, 2, 3, 10, 20} {
		if !seen[want] {
			t.Errorf("value %d from the class was never drawn", want)
		}
	}
}
