// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"math/rand"
	"os"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/acasagrande/races-core/archive"
)

// Writer appends values of type V to an on-disk bucket file. It
// maintains a bounded in-memory write cache and flushes it either
// explicitly, when full, or on Close.
type Writer[V any] struct {
	codec      Codec[V]
	fixedSize  int // 0 when codec is not a FixedSizeCodec
	path       string
	w          *archive.Archive
	sizeOffset int64
	dataOffset int64

	size       uint64
	cache      []V
	cacheCap   int // max cached record count
	cacheBytes int // requested capacity, in bytes
}

// recordCapacity returns the cache capacity, expressed as a record
// count, for the requested byte budget. Constant-on-disk codecs get an
// exact record count; variable-on-disk codecs have no fixed per-record
// size, so the byte budget is interpreted directly as a record count.
func recordCapacity[V any](codec Codec[V], cacheBytes int) (cap int, recordSize int) {
	if fc, ok := codec.(FixedSizeCodec[V]); ok {
		return cacheBytes / fc.Size(), fc.Size()
	}
	return cacheBytes, 0
}

// Create opens path for appending values encoded with codec. If path
// already exists, its header is validated and writes continue from its
// current logical size; otherwise a fresh bucket file is created.
func Create[V any](path string, codec Codec[V], cacheBytes int) (*Writer[V], error) {
	cacheCap, recordSize := recordCapacity[V](codec, cacheBytes)
	if fc, ok := codec.(FixedSizeCodec[V]); ok && cacheBytes < fc.Size() {
		return nil, errors.E(errors.Invalid, "bucket.Create: cache_bytes smaller than one record")
	}
	if cacheCap <= 0 {
		return nil, errors.E(errors.Invalid, "bucket.Create: cache_bytes yields zero capacity")
	}

	info, statErr := os.Stat(path)
	switch {
	case statErr == nil && info.IsDir():
		return nil, errors.E(errors.Invalid, "bucket.Create: "+path+" is a directory")
	case statErr == nil:
		w, err := archive.OpenAppend(path)
		if err != nil {
			return nil, err
		}
		if err := w.ReadHeader(magic, version); err != nil {
			w.Close()
			return nil, err
		}
		sizeOffset, err := w.Tell()
		if err != nil {
			w.Close()
			return nil, err
		}
		size, err := w.ReadUint64()
		if err != nil {
			w.Close()
			return nil, err
		}
		dataOffset, err := w.Tell()
		if err != nil {
			w.Close()
			return nil, err
		}
		bw := &Writer[V]{
			codec:      codec,
			fixedSize:  recordSize,
			path:       path,
			w:          w,
			sizeOffset: sizeOffset,
			dataOffset: dataOffset,
			size:       size,
			cacheCap:   cacheCap,
			cacheBytes: cacheBytes,
		}
		runtime.SetFinalizer(bw, (*Writer[V]).closeNoError)
		return bw, nil
	default:
		w, err := archive.Create(path)
		if err != nil {
			return nil, err
		}
		if err := w.WriteHeader(magic, version); err != nil {
			w.Close()
			return nil, err
		}
		sizeOffset, err := w.Tell()
		if err != nil {
			w.Close()
			return nil, err
		}
		if err := w.WriteUint64(0); err != nil {
			w.Close()
			return nil, err
		}
		dataOffset, err := w.Tell()
		if err != nil {
			w.Close()
			return nil, err
		}
		bw := &Writer[V]{
			codec:      codec,
			fixedSize:  recordSize,
			path:       path,
			w:          w,
			sizeOffset: sizeOffset,
			dataOffset: dataOffset,
			cacheCap:   cacheCap,
			cacheBytes: cacheBytes,
		}
		runtime.SetFinalizer(bw, (*Writer[V]).closeNoError)
		return bw, nil
	}
}

// Path returns the file path backing this writer.
func (w *Writer[V]) Path() string { return w.path }

// Size returns the number of values pushed so far, including any not
// yet flushed to disk.
func (w *Writer[V]) Size() uint64 { return w.size }

// PushBack appends v. If the cache is full it is flushed first.
func (w *Writer[V]) PushBack(v V) error {
	if len(w.cache) >= w.cacheCap {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.cache = append(w.cache, v)
	w.size++
	return nil
}

// Flush rewrites the size field and appends every cached value to
// end-of-file, then clears the cache. Flush is idempotent.
func (w *Writer[V]) Flush() error {
	if err := w.w.Seek(w.sizeOffset); err != nil {
		return err
	}
	if err := w.w.WriteUint64(w.size); err != nil {
		return err
	}
	end, err := w.w.Size()
	if err != nil {
		return err
	}
	if err := w.w.Seek(end); err != nil {
		return err
	}
	for _, v := range w.cache {
		if err := w.codec.Encode(w.w, v); err != nil {
			return err
		}
	}
	w.cache = w.cache[:0]
	return nil
}

// SetCacheSize changes the write-cache capacity. If the new capacity
// is smaller than the currently cached volume, the cache is flushed
// first.
func (w *Writer[V]) SetCacheSize(bytes int) error {
	cacheCap, _ := recordCapacity[V](w.codec, bytes)
	if fc, ok := w.codec.(FixedSizeCodec[V]); ok && bytes < fc.Size() {
		return errors.E(errors.Invalid, "bucket.SetCacheSize: cache_bytes smaller than one record")
	}
	if cacheCap <= 0 {
		return errors.E(errors.Invalid, "bucket.SetCacheSize: cache_bytes yields zero capacity")
	}
	if cacheCap < len(w.cache) {
		if err := w.Flush(); err != nil {
			return err
		}
	}
	w.cacheCap = cacheCap
	w.cacheBytes = bytes
	return nil
}

// Close flushes the writer and closes the underlying file. It cancels
// the on-drop finalizer, since the flush it would perform has already
// happened.
func (w *Writer[V]) Close() error {
	runtime.SetFinalizer(w, nil)
	if err := w.Flush(); err != nil {
		return err
	}
	return w.w.Close()
}

// closeNoError backs the on-drop finalizer registered at construction
// time: a caller that never calls Close explicitly still gets its
// cached values flushed when the writer is garbage collected, but I/O
// errors from that implicit flush are logged rather than propagated,
// since there is no caller left to receive them (spec section 7).
func (w *Writer[V]) closeNoError() {
	if err := w.Close(); err != nil {
		log.Printf("bucket: flush on close of %s failed: %v", w.path, err)
	}
}

// Shuffle replaces the on-disk sequence with a uniform random
// permutation of it, using at most bufferBytes of extra memory beyond
// the writer's own cache. It requires a FixedSizeCodec. onProgress, if
// non-nil, is called periodically during the external-memory path
// with the number of values partitioned (or chunks reassembled) so
// far and the total; it is never called by the in-memory path, which
// completes in one step.
func (w *Writer[V]) Shuffle(rng *rand.Rand, bufferBytes int, tmpDir string, onProgress func(done, total int)) error {
	fc, ok := w.codec.(FixedSizeCodec[V])
	if !ok {
		return errors.E(errors.Invalid, "bucket.Shuffle: codec is not constant-on-disk")
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if w.size == 0 {
		return nil
	}

	savedCap, savedBytes := w.cacheCap, w.cacheBytes
	defer func() {
		w.cacheCap, w.cacheBytes = savedCap, savedBytes
		w.cache = w.cache[:0]
	}()

	s := fc.Size()
	if int64(bufferBytes) >= int64(w.size)*int64(s) {
		return w.shuffleInMemory(rng, fc)
	}
	return w.shuffleOnDisk(rng, fc, bufferBytes, tmpDir, onProgress)
}

// shuffleInMemory implements the in-memory branch: load every value,
// Fisher-Yates it, and rewrite the file from scratch.
func (w *Writer[V]) shuffleInMemory(rng *rand.Rand, fc FixedSizeCodec[V]) error {
	values := make([]V, w.size)
	if err := w.w.Seek(w.dataOffset); err != nil {
		return err
	}
	for i := range values {
		v, err := fc.Decode(w.w)
		if err != nil {
			return err
		}
		values[i] = v
	}
	fisherYates(values, rng)

	if err := w.w.Truncate(w.dataOffset); err != nil {
		return err
	}
	if err := w.w.Seek(w.dataOffset); err != nil {
		return err
	}
	for _, v := range values {
		if err := fc.Encode(w.w, v); err != nil {
			return err
		}
	}
	return nil
}

// fisherYates performs an in-place uniform Fisher-Yates shuffle.
func fisherYates[V any](values []V, rng *rand.Rand) {
	for i := len(values) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}
