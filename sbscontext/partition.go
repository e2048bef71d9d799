// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package sbscontext implements the key type and partition for
// single-base substitution trinucleotide contexts ("ACA", "TCT",
// ...): a context and its reverse complement are mutation-equivalent
// and must be drawn from as a single pool.
package sbscontext

import "github.com/acasagrande/races-core/archive"

var complementBase = map[byte]byte{
	'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C',
}

// Context is a trinucleotide substitution context such as "ACA": the
// base being mutated together with its immediate 5' and 3' neighbors.
// It is a named string, not a struct wrapper, since the on-disk and
// in-memory representations coincide; it satisfies index.Key[Context].
type Context string

func (c Context) String() string { return string(c) }

func (c Context) Less(other Context) bool { return c < other }

// ReverseComplement returns the reverse complement of a context,
// complementing each base and reversing their order. A base outside
// {A,C,G,T} is left unchanged.
func ReverseComplement(context Context) Context {
	b := []byte(context)
	n := len(b)
	out := make([]byte, n)
	for i, c := range b {
		complement, ok := complementBase[c]
		if !ok {
			complement = c
		}
		out[n-1-i] = complement
	}
	return Context(out)
}

// ReverseComplementClass implements index.Partition[Context]: a
// context and its reverse complement (the same substitution read from
// the opposite strand) form one class, unless the context is its own
// reverse complement.
type ReverseComplementClass struct{}

func (ReverseComplementClass) ClassOf(context Context) []Context {
	rc := ReverseComplement(context)
	if rc == context {
		return []Context{context}
	}
	return []Context{context, rc}
}

// Codec is a bucket.FixedSizeCodec for Context values of a fixed
// trinucleotide length (3 bytes: 5' base, mutated base, 3' base).
type Codec struct{}

func (Codec) Size() int { return 3 }

func (Codec) Encode(a *archive.Archive, c Context) error {
	return a.WriteBytes([]byte(c))
}

func (Codec) Decode(a *archive.Archive) (Context, error) {
	b, err := a.ReadBytes(3)
	if err != nil {
		return "", err
	}
	return Context(b), nil
}
