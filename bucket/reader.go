// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"io"
	"math/rand"
	"os"

	"github.com/grailbio/base/errors"

	"github.com/acasagrande/races-core/archive"
)

// Reader gives read-only access to a bucket file. A Reader never
// mutates the file it reads.
type Reader[V any] struct {
	codec      Codec[V]
	path       string
	dataOffset int64
	size       uint64
	cacheBytes int
}

// Open reads a bucket's header and prepares it for reading. cacheBytes
// bounds the chunk size used by forward iteration and random tours
// created from this reader.
func Open[V any](path string, codec Codec[V], cacheBytes int) (*Reader[V], error) {
	if fc, ok := codec.(FixedSizeCodec[V]); ok && cacheBytes < fc.Size() {
		return nil, errors.E(errors.Invalid, "bucket.Open: cache_bytes smaller than one record")
	}
	a, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	if err := a.ReadHeader(magic, version); err != nil {
		return nil, err
	}
	size, err := a.ReadUint64()
	if err != nil {
		return nil, err
	}
	dataOffset, err := a.Tell()
	if err != nil {
		return nil, err
	}
	return &Reader[V]{
		codec:      codec,
		path:       path,
		dataOffset: dataOffset,
		size:       size,
		cacheBytes: cacheBytes,
	}, nil
}

// Size returns the number of values in the bucket.
func (r *Reader[V]) Size() uint64 { return r.size }

// Path returns the file path backing this reader.
func (r *Reader[V]) Path() string { return r.path }

// recordSize returns the fixed encoded size and true if the reader's
// codec is constant-on-disk.
func (r *Reader[V]) recordSize() (int, bool) {
	fc, ok := r.codec.(FixedSizeCodec[V])
	if !ok {
		return 0, false
	}
	return fc.Size(), true
}

// Get performs constant-time random access; it requires a
// FixedSizeCodec and fails with ErrOutOfRange if i >= Size().
func (r *Reader[V]) Get(i uint64) (V, error) {
	var zero V
	s, ok := r.recordSize()
	if !ok {
		return zero, errors.E(errors.Invalid, "bucket.Get: codec is not constant-on-disk")
	}
	if i >= r.size {
		return zero, ErrOutOfRange
	}
	a, err := archive.Open(r.path)
	if err != nil {
		return zero, err
	}
	defer a.Close()
	if err := a.Seek(r.dataOffset + int64(i)*int64(s)); err != nil {
		return zero, err
	}
	fc := r.codec.(FixedSizeCodec[V])
	return fc.Decode(a)
}

// Choose draws a uniformly random index and returns its value. It does
// not remove the value from the bucket.
func (r *Reader[V]) Choose(rng *rand.Rand) (V, error) {
	var zero V
	if r.size == 0 {
		return zero, ErrOutOfRange
	}
	return r.Get(uint64(rng.Int63n(int64(r.size))))
}

// Rename moves the underlying file to newPath.
func (r *Reader[V]) Rename(newPath string) error {
	if err := os.Rename(r.path, newPath); err != nil {
		return errors.E(err, "bucket.Rename")
	}
	r.path = newPath
	return nil
}

// Iterator is a forward, chunk-cached iterator over a bucket's values
// in file order. It owns its own file handle and cache; two iterators
// over the same bucket are fully independent.
type Iterator[V any] struct {
	codec     Codec[V]
	path      string
	a         *archive.Archive
	readPos   int64
	cache     []V
	index     int
	cacheCap  int
	exhausted bool
}

// Iterate returns a new forward iterator positioned at the start of
// the bucket.
func (r *Reader[V]) Iterate() (*Iterator[V], error) {
	a, err := archive.Open(r.path)
	if err != nil {
		return nil, err
	}
	if err := a.Seek(r.dataOffset); err != nil {
		a.Close()
		return nil, err
	}
	cap, _ := recordCapacity[V](r.codec, r.cacheBytes)
	if cap <= 0 {
		cap = 1
	}
	return &Iterator[V]{
		codec:    r.codec,
		path:     r.path,
		a:        a,
		readPos:  r.dataOffset,
		cacheCap: cap,
	}, nil
}

// loadNext refills the cache from disk. It returns the number of
// values loaded.
func (it *Iterator[V]) loadNext() (int, error) {
	it.cache = it.cache[:0]
	it.index = 0
	for len(it.cache) < it.cacheCap {
		v, err := it.codec.Decode(it.a)
		if err != nil {
			if err == io.EOF {
				break
			}
			return len(it.cache), err
		}
		it.cache = append(it.cache, v)
	}
	pos, err := it.a.Tell()
	if err != nil {
		return len(it.cache), err
	}
	it.readPos = pos
	return len(it.cache), nil
}

// Next advances the iterator and returns the next value. It returns
// io.EOF once every value has been yielded.
func (it *Iterator[V]) Next() (V, error) {
	var zero V
	if it.exhausted {
		return zero, io.EOF
	}
	if it.index >= len(it.cache) {
		n, err := it.loadNext()
		if err != nil {
			return zero, err
		}
		if n == 0 {
			it.exhausted = true
			return zero, io.EOF
		}
	}
	v := it.cache[it.index]
	it.index++
	return v, nil
}

// IsEnd reports whether the iterator has found no more values to load:
// it becomes true once a Next call has returned io.EOF, not as soon as
// the last value has been yielded. This mirrors the
// source's asymmetric end comparator (spec section 9): any two ended
// iterators are equal to each other regardless of their other fields.
func (it *Iterator[V]) IsEnd() bool {
	return it.exhausted && it.index == 0 && len(it.cache) == 0
}

// Equal compares two iterators the way the source does: two ended
// iterators are always equal; otherwise (path, read position, index,
// available-in-cache) must all match.
func (it *Iterator[V]) Equal(other *Iterator[V]) bool {
	if it.IsEnd() && other.IsEnd() {
		return true
	}
	if it.IsEnd() != other.IsEnd() {
		return false
	}
	return it.path == other.path &&
		it.readPos == other.readPos &&
		it.index == other.index &&
		(len(it.cache)-it.index) == (len(other.cache)-other.index)
}

// Close releases the iterator's file handle.
func (it *Iterator[V]) Close() error {
	return it.a.Close()
}

// RandomTour constructs a bounded-memory random-tour iterator over a
// snapshot of this bucket. The tour seeds its own generator from one
// draw of rng, so the tour's sequence is reproducible from the
// caller's rng state at the time of the call and independent of any
// further use of that rng by the caller.
func (r *Reader[V]) RandomTour(rng *rand.Rand, cacheBytes int) (*Tour[V], error) {
	return newTour(r, rng, cacheBytes)
}
