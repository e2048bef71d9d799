// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package index

import (
	"math/rand"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"

	"github.com/acasagrande/races-core/archive"
	"github.com/acasagrande/races-core/bucket"
)

// ErrEmptyClass is returned by ExtractFromClass and ChooseFromClass
// when every bucket in the requested key's class has no extractable
// value left (or none to begin with).
var ErrEmptyClass = errors.New("index: no value available in the key class")

// ErrUnknownKey is returned by operations that require a key already
// present in the index.
var ErrUnknownKey = errors.New("index: unknown key")

type bucketHandle[K any, V any] struct {
	key    K
	reader *bucket.Reader[V]
	tour   *bucket.Tour[V]
	it     *bucket.TourIterator[V]
}

// Reader loads an index directory's manifest and serves per-key random
// access, without-replacement extraction backed by bucket random
// tours, and class-aware extraction over a caller-supplied Partition.
// A Reader never mutates any file.
type Reader[K Key[K], V any] struct {
	path       string
	prefix     string
	cacheBytes int
	keys       []K
	byKey      map[K]*bucketHandle[K, V]
}

// Open loads dir's manifest and opens every bucket it lists, each with
// an equal share of cacheBytes.
func Open[K Key[K], V any](dir string, cacheBytes int, keyCodec bucket.Codec[K], valueCodec bucket.Codec[V]) (*Reader[K, V], error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, "index.Open: "+dir+" does not exist")
		}
		return nil, errors.E(err, "index.Open")
	}
	if !info.IsDir() {
		return nil, errors.E(errors.Invalid, "index.Open: "+dir+" is not a directory")
	}

	manifestPath := filepath.Join(dir, manifestName)
	a, err := archive.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	if err := a.ReadHeader(manifestMagic, manifestVersion); err != nil {
		return nil, err
	}
	prefix, err := a.ReadString()
	if err != nil {
		return nil, err
	}
	numKeys, err := a.ReadUint64()
	if err != nil {
		return nil, err
	}
	if numKeys > 0 && uint64(cacheBytes) < numKeys {
		return nil, errors.E(errors.Invalid, "index.Open: cache_bytes smaller than the number of keys")
	}

	perBucket := cacheBytes
	if numKeys > 0 {
		perBucket = cacheBytes / int(numKeys)
	}

	r := &Reader[K, V]{
		path:       dir,
		prefix:     prefix,
		cacheBytes: cacheBytes,
		keys:       make([]K, 0, numKeys),
		byKey:      make(map[K]*bucketHandle[K, V], numKeys),
	}
	for i := uint64(0); i < numKeys; i++ {
		k, err := keyCodec.Decode(a)
		if err != nil {
			return nil, err
		}
		bucketPath := filepath.Join(dir, bucketFileName(prefix, k.String()))
		br, err := bucket.Open[V](bucketPath, valueCodec, perBucket)
		if err != nil {
			return nil, err
		}
		r.keys = append(r.keys, k)
		r.byKey[k] = &bucketHandle[K, V]{key: k, reader: br}
	}
	return r, nil
}

// GetKeys returns the index's keys in manifest (ascending) order.
func (r *Reader[K, V]) GetKeys() []K {
	keys := make([]K, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Bucket returns the bucket reader for k and whether k is known.
func (r *Reader[K, V]) Bucket(k K) (*bucket.Reader[V], bool) {
	h, ok := r.byKey[k]
	if !ok {
		return nil, false
	}
	return h.reader, true
}

// NumOfValues returns the size of k's bucket, or 0 if k is unknown.
func (r *Reader[K, V]) NumOfValues(k K) uint64 {
	h, ok := r.byKey[k]
	if !ok {
		return 0
	}
	return h.reader.Size()
}

// ExtractableFor returns the number of values still extractable from
// k's bucket: the remaining count of its tour if one has been started,
// or its full size otherwise. It is 0 for an unknown key.
func (r *Reader[K, V]) ExtractableFor(k K) uint64 {
	h, ok := r.byKey[k]
	if !ok {
		return 0
	}
	if h.it != nil {
		return uint64(h.it.RemainingValues())
	}
	return h.reader.Size()
}

// Choose draws a uniformly random value from k's bucket without
// consuming it. It requires a FixedSizeCodec value type.
func (r *Reader[K, V]) Choose(rng *rand.Rand, k K) (V, error) {
	var zero V
	h, ok := r.byKey[k]
	if !ok {
		return zero, ErrUnknownKey
	}
	return h.reader.Choose(rng)
}

func (r *Reader[K, V]) ensureTour(rng *rand.Rand, h *bucketHandle[K, V]) error {
	if h.it != nil {
		return nil
	}
	perBucket := r.cacheBytes
	if n := len(r.byKey); n > 0 {
		perBucket = r.cacheBytes / n
	}
	tour, err := h.reader.RandomTour(rng, perBucket)
	if err != nil {
		return err
	}
	it, err := tour.Begin()
	if err != nil {
		return err
	}
	h.tour = tour
	h.it = it
	return nil
}

// Extract draws the next value from k's random tour, creating the
// tour on first use, and consumes it: a later Extract of the same key
// will not return it again until Reset. It fails with
// bucket.ErrTourEnded once every value has been extracted.
func (r *Reader[K, V]) Extract(rng *rand.Rand, k K) (V, error) {
	var zero V
	h, ok := r.byKey[k]
	if !ok {
		return zero, ErrUnknownKey
	}
	if err := r.ensureTour(rng, h); err != nil {
		return zero, err
	}
	if h.it.IsEnd() {
		return zero, bucket.ErrTourEnded
	}
	v, err := h.it.Value()
	if err != nil {
		return zero, err
	}
	if err := h.it.Advance(); err != nil {
		return zero, err
	}
	return v, nil
}

// BootUpTours creates a tour and loads its first chunk for every key
// that does not already have one, amortizing the first-call cost of
// Extract. onProgress, if non-nil, is called after each key with the
// number of keys booted so far and the total.
func (r *Reader[K, V]) BootUpTours(rng *rand.Rand, onProgress func(done, total int)) error {
	total := len(r.keys)
	for i, k := range r.keys {
		h := r.byKey[k]
		if err := r.ensureTour(rng, h); err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}
	return nil
}

// NumOfClassValues sums NumOfValues over every key in p's class of k.
func (r *Reader[K, V]) NumOfClassValues(p Partition[K], k K) uint64 {
	var total uint64
	for _, j := range p.ClassOf(k) {
		total += r.NumOfValues(j)
	}
	return total
}

// ExtractableFromClass sums ExtractableFor over every key in p's class
// of k.
func (r *Reader[K, V]) ExtractableFromClass(p Partition[K], k K) uint64 {
	var total uint64
	for _, j := range p.ClassOf(k) {
		total += r.ExtractableFor(j)
	}
	return total
}

// ExtractFromClass draws a position uniformly over every extractable
// value across p's class of k, then extracts from whichever class
// member that position lands on. It fails with ErrEmptyClass if the
// class has no extractable value.
func (r *Reader[K, V]) ExtractFromClass(rng *rand.Rand, p Partition[K], k K) (K, V, error) {
	var zeroK K
	var zeroV V
	class := p.ClassOf(k)
	available := r.ExtractableFromClass(p, k)
	if available == 0 {
		return zeroK, zeroV, ErrEmptyClass
	}
	pos := uint64(rng.Int63n(int64(available)))
	for _, j := range class {
		availableFor := r.ExtractableFor(j)
		if pos < availableFor {
			v, err := r.Extract(rng, j)
			return j, v, err
		}
		pos -= availableFor
	}
	v, err := r.Extract(rng, k)
	return k, v, err
}

// ChooseFromClass mirrors ExtractFromClass but chooses instead of
// extracting: the drawn value is not consumed.
func (r *Reader[K, V]) ChooseFromClass(rng *rand.Rand, p Partition[K], k K) (K, V, error) {
	var zeroK K
	var zeroV V
	class := p.ClassOf(k)
	available := r.ExtractableFromClass(p, k)
	if available == 0 {
		return zeroK, zeroV, ErrEmptyClass
	}
	pos := uint64(rng.Int63n(int64(available)))
	for _, j := range class {
		availableFor := r.ExtractableFor(j)
		if pos < availableFor {
			v, err := r.Choose(rng, j)
			return j, v, err
		}
		pos -= availableFor
	}
	v, err := r.Choose(rng, k)
	return k, v, err
}

// Reset discards every tour, so subsequent extractions begin anew.
func (r *Reader[K, V]) Reset() {
	for _, h := range r.byKey {
		h.tour = nil
		h.it = nil
	}
}
