// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package idcontext implements the indel repetition context key and
// value types (a repeated-sequence classifier and its genomic
// reference) and the repetition scanner that discovers them in a
// chromosome sequence, ready for insertion into an index builder.
package idcontext

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"

	"github.com/acasagrande/races-core/archive"
)

// FragmentType classifies the kind of repeated sequence a Context
// describes.
type FragmentType uint8

const (
	Homopolymer FragmentType = iota
	Heteropolymer
	Microhomology
)

func (f FragmentType) String() string {
	switch f {
	case Homopolymer:
		return "homopolymer"
	case Heteropolymer:
		return "heteropolymer"
	case Microhomology:
		return "microhomology"
	default:
		return "unknown"
	}
}

// Context classifies a genomic locus by the repeated-sequence pattern
// found there: a fragment type together with a first-level code
// (the homopolymer's unit base, or the unit/fragment size for
// heteropolymer and microhomology) and a second-level code (the
// number of repetitions, or the microhomology size). It satisfies
// index.Key[Context].
type Context struct {
	ftype  FragmentType
	flCode byte
	slCode byte
}

// ForHomopolymer builds the context of a homopolymer of the given
// unit base and repetition count. unitBase must be one of A, C, G, T.
func ForHomopolymer(unitBase byte, numOfRepetitions byte) Context {
	return Context{ftype: Homopolymer, flCode: unitBase, slCode: numOfRepetitions}
}

// ForHeteropolymer builds the context of a heteropolymer of the given
// unit size and repetition count.
func ForHeteropolymer(unitSize, numOfRepetitions byte) Context {
	return Context{ftype: Heteropolymer, flCode: unitSize, slCode: numOfRepetitions}
}

// ForMicrohomology builds the context of a microhomology of the given
// distance and homology size.
func ForMicrohomology(distance, homologySize byte) Context {
	return Context{ftype: Microhomology, flCode: distance, slCode: homologySize}
}

// FragmentType returns the context's fragment type.
func (c Context) FragmentType() FragmentType { return c.ftype }

// UnitBase returns the homopolymer's repeated base. Calling it on a
// non-homopolymer context is a misuse the caller must avoid by
// checking FragmentType first.
func (c Context) UnitBase() byte { return c.flCode }

// UnitSize returns the heteropolymer or microhomology unit/distance
// code.
func (c Context) UnitSize() byte { return c.flCode }

// NumOfRepetitions returns the homopolymer or heteropolymer repetition
// code.
func (c Context) NumOfRepetitions() byte { return c.slCode }

// MicrohomologySize returns the microhomology size code.
func (c Context) MicrohomologySize() byte { return c.slCode }

// Less orders contexts by fragment type, then first-level code, then
// second-level code, matching the ordering the original C++
// `std::less<IDContext>` specialization defines.
func (c Context) Less(other Context) bool {
	if c.ftype != other.ftype {
		return c.ftype < other.ftype
	}
	if c.flCode != other.flCode {
		return c.flCode < other.flCode
	}
	return c.slCode < other.slCode
}

// String renders the context in the conventional
// `{number}{'A','C','G','T','R','M'}{number}` form: the first number
// is the unit size (always 1 for a homopolymer), the letter names the
// fragment (a base for homopolymer, 'R' for heteropolymer, 'M' for
// microhomology), and the trailing number is the repetition or
// homology-size code.
func (c Context) String() string {
	switch c.ftype {
	case Homopolymer:
		return fmt.Sprintf("1%c%d", c.flCode, c.slCode)
	case Heteropolymer:
		return fmt.Sprintf("%dR%d", c.flCode, c.slCode)
	case Microhomology:
		return fmt.Sprintf("%dM%d", c.flCode, c.slCode)
	default:
		return fmt.Sprintf("?%d?%d", c.flCode, c.slCode)
	}
}

// ParseContext parses the textual form produced by String.
func ParseContext(s string) (Context, error) {
	if len(s) < 3 {
		return Context{}, errors.E(errors.Invalid, "idcontext.ParseContext: "+s+" is too short")
	}
	// Split at the single non-digit letter that separates the two numbers.
	letterAt := -1
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			letterAt = i
			break
		}
	}
	if letterAt <= 0 || letterAt == len(s)-1 {
		return Context{}, errors.E(errors.Invalid, "idcontext.ParseContext: "+s+" is not a valid context")
	}
	num1, err := strconv.ParseUint(s[:letterAt], 10, 8)
	if err != nil {
		return Context{}, errors.E(errors.Invalid, "idcontext.ParseContext: "+s)
	}
	num2, err := strconv.ParseUint(s[letterAt+1:], 10, 8)
	if err != nil {
		return Context{}, errors.E(errors.Invalid, "idcontext.ParseContext: "+s)
	}
	switch c := s[letterAt]; c {
	case 'A', 'a', 'C', 'c', 'G', 'g', 'T', 't':
		base := byte(c)
		if base >= 'a' {
			base -= 'a' - 'A'
		}
		return Context{ftype: Homopolymer, flCode: base, slCode: byte(num2)}, nil
	case 'R':
		return Context{ftype: Heteropolymer, flCode: byte(num1), slCode: byte(num2)}, nil
	case 'M':
		return Context{ftype: Microhomology, flCode: byte(num1), slCode: byte(num2)}, nil
	default:
		return Context{}, errors.E(errors.Invalid, "idcontext.ParseContext: "+s+" is not a valid context")
	}
}

// Codec is a bucket.FixedSizeCodec for Context, stored as three raw
// bytes: fragment type, first-level code, second-level code.
type Codec struct{}

func (Codec) Size() int { return 3 }

func (Codec) Encode(a *archive.Archive, c Context) error {
	return a.WriteBytes([]byte{byte(c.ftype), c.flCode, c.slCode})
}

func (Codec) Decode(a *archive.Archive) (Context, error) {
	b, err := a.ReadBytes(3)
	if err != nil {
		return Context{}, err
	}
	return Context{ftype: FragmentType(b[0]), flCode: b[1], slCode: b[2]}, nil
}
