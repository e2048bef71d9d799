// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package archive

import (
	"path/filepath"
	"testing"

	fuzz "github.com/google/gofuzz"
)

func TestHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader("RACES Bucket", 0); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint64(42); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.ReadHeader("RACES Bucket", 0); err != nil {
		t.Fatal(err)
	}
	got, err := r.ReadUint64()
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestHeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.bin")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader("RACES index", 0); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.ReadHeader("RACES Bucket", 0); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.bin")); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

func TestStringRoundTrip(t *testing.T) {
	fz := fuzz.New().NilChance(0)
	var values []string
	fz.NumElements(1, 50).Fuzz(&values)

	path := filepath.Join(t.TempDir(), "s.bin")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range values {
		if err := w.WriteString(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for i, want := range values {
		got, err := r.ReadString()
		if err != nil {
			t.Fatalf("element %d: %v", i, err)
		}
		if got != want {
			t.Errorf("element %d: got %q, want %q", i, got, want)
		}
	}
}
