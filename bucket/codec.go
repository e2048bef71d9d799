// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package bucket implements an append-only on-disk vector of values of
// a single type V: sequential and random-access reads, in-memory and
// external-memory uniform shuffling, and a bounded-memory random-tour
// iterator.
package bucket

import "github.com/acasagrande/races-core/archive"

// Codec encodes and decodes values of type V to and from a bucket
// archive.
type Codec[V any] interface {
	Encode(a *archive.Archive, v V) error
	Decode(a *archive.Archive) (V, error)
}

// FixedSizeCodec is a Codec whose encoded form always occupies exactly
// Size() bytes. Random access and choose are only available for
// buckets whose codec implements this interface, and only such buckets
// start their random tours at a random value (tours over other buckets
// start at the first value); callers probe for it with a type
// assertion, the same capability-gate
// idiom the teacher uses for its optional CloseNoSync behavior.
type FixedSizeCodec[V any] interface {
	Codec[V]
	Size() int
}

// Uint64Codec is a FixedSizeCodec for plain uint64 values, used by the
// scenario-level tests and as the simplest possible constant-on-disk
// value type.
type Uint64Codec struct{}

func (Uint64Codec) Size() int { return 8 }

func (Uint64Codec) Encode(a *archive.Archive, v uint64) error {
	return a.WriteUint64(v)
}

func (Uint64Codec) Decode(a *archive.Archive) (uint64, error) {
	return a.ReadUint64()
}

// BytesCodec is a variable-on-disk Codec for byte slices, encoded as a
// length-prefixed record. It does not implement FixedSizeCodec, so
// buckets of []byte support sequential iteration and random tours
// that start at the first value, but not random access or choose.
type BytesCodec struct{}

func (BytesCodec) Encode(a *archive.Archive, v []byte) error {
	if err := a.WriteUint64(uint64(len(v))); err != nil {
		return err
	}
	return a.WriteBytes(v)
}

func (BytesCodec) Decode(a *archive.Archive) ([]byte, error) {
	n, err := a.ReadUint64()
	if err != nil {
		return nil, err
	}
	return a.ReadBytes(int(n))
}
