// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package idcontext

import (
	"path/filepath"
	"testing"

	"github.com/acasagrande/races-core/archive"
)

func TestContextStringRoundTrip(t *testing.T) {
	cases := []Context{
		ForHomopolymer('A', 4),
		ForHomopolymer('t', 2), // ParseContext normalizes the base to uppercase
		ForHeteropolymer(3, 5),
		ForMicrohomology(2, 5),
	}
	for _, c := range cases {
		s := c.String()
		got, err := ParseContext(s)
		if err != nil {
			t.Fatalf("ParseContext(%q): %v", s, err)
		}
		if got.FragmentType() != c.FragmentType() {
			t.Errorf("ParseContext(%q).FragmentType() = %v, want %v", s, got.FragmentType(), c.FragmentType())
		}
	}
}

func TestParseContextRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "3", "R3", "3R", "3X5", "AB"} {
		if _, err := ParseContext(s); err == nil {
			t.Errorf("ParseContext(%q) succeeded, want error", s)
		}
	}
}

func TestContextLessOrdersByFragmentTypeThenCodes(t *testing.T) {
	a := ForHomopolymer('A', 9)
	b := ForHeteropolymer(1, 1)
	if !a.Less(b) {
		t.Errorf("homopolymer should sort before heteropolymer regardless of codes")
	}
	if b.Less(a) {
		t.Errorf("heteropolymer should not sort before homopolymer")
	}

	x := ForHeteropolymer(2, 3)
	y := ForHeteropolymer(2, 4)
	if !x.Less(y) {
		t.Errorf("equal unit size should order by repetition code")
	}
}

func TestContextCodecRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.bin")
	a, err := archive.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	codec := Codec{}
	want := []Context{
		ForHomopolymer('G', 6),
		ForHeteropolymer(5, 6),
		ForMicrohomology(5, 5),
	}
	for _, c := range want {
		if err := codec.Encode(a, c); err != nil {
			t.Fatalf("Encode(%v): %v", c, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	a, err = archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	for _, c := range want {
		got, err := codec.Decode(a)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got != c {
			t.Errorf("Decode() = %v, want %v", got, c)
		}
	}
}

func TestReferenceCodecRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.bin")
	a, err := archive.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	codec := ReferenceCodec{}
	want := NewReference(3, 1_234_567, 4)
	if err := codec.Encode(a, want); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	a, err = archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	got, err := codec.Decode(a)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Decode() = %v, want %v", got, want)
	}
}

func TestHomopolymerReverseComplementClass(t *testing.T) {
	p := HomopolymerReverseComplementClass{}

	class := p.ClassOf(ForHomopolymer('A', 5))
	if len(class) != 2 {
		t.Fatalf("ClassOf(homopolymer A) = %v, want 2 entries", class)
	}
	found := false
	for _, c := range class {
		if c == ForHomopolymer('T', 5) {
			found = true
		}
	}
	if !found {
		t.Errorf("ClassOf(homopolymer A,5) does not include complement T,5: %v", class)
	}

	singleton := p.ClassOf(ForHeteropolymer(3, 2))
	if len(singleton) != 1 || singleton[0] != ForHeteropolymer(3, 2) {
		t.Errorf("ClassOf(heteropolymer) = %v, want singleton of itself", singleton)
	}
}
