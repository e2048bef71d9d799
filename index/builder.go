// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package index

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/btree"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/acasagrande/races-core/archive"
	"github.com/acasagrande/races-core/bucket"
)

const (
	manifestMagic   = "RACES index"
	manifestVersion = 0
	manifestName    = "map.bin"
)

func bucketFileName(prefix, keyDisplay string) string {
	return fmt.Sprintf("%s_%s.bin", prefix, keyDisplay)
}

type keyedWriter[K Key[K], V any] struct {
	key    K
	writer *bucket.Writer[V]
}

func lessKeyedWriter[K Key[K], V any](a, b keyedWriter[K, V]) bool {
	return a.key.Less(b.key)
}

// Builder ingests (key, value) pairs, fanning each key out to its own
// bucket file, and on Close writes a manifest listing every key in
// ascending order alongside the bucket-filename prefix.
//
// A Builder owns its directory exclusively for its lifetime: opening a
// Builder over a directory that already exists fails.
type Builder[K Key[K], V any] struct {
	config

	path       string
	cacheBytes int
	keyCodec   bucket.Codec[K]
	valueCodec bucket.Codec[V]
	tree       *btree.BTreeG[keyedWriter[K, V]]
}

// Create makes a fresh index directory at path and returns a builder
// ready to accept insertions. It fails if path already exists or if
// cacheBytes is not positive.
func Create[K Key[K], V any](path string, cacheBytes int, keyCodec bucket.Codec[K], valueCodec bucket.Codec[V], opts ...Option) (*Builder[K, V], error) {
	if cacheBytes <= 0 {
		return nil, errors.E(errors.Invalid, "index.Create: cache_bytes must be greater than 0")
	}
	if _, err := os.Stat(path); err == nil {
		return nil, errors.E(errors.Exists, "index.Create: "+path+" already exists")
	}
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, errors.E(err, "index.Create")
	}
	b := &Builder[K, V]{
		config:     newConfig(opts),
		path:       path,
		cacheBytes: cacheBytes,
		keyCodec:   keyCodec,
		valueCodec: valueCodec,
		tree:       btree.NewG(32, lessKeyedWriter[K, V]),
	}
	runtime.SetFinalizer(b, (*Builder[K, V]).closeNoError)
	return b, nil
}

func (b *Builder[K, V]) bucketPath(k K) string {
	return filepath.Join(b.path, bucketFileName(b.bucketPrefix, k.String()))
}

// addBucketFor creates a new bucket writer for k, first shrinking
// every existing bucket's write cache to make room for the new one,
// then inserts it into the tree and returns it.
func (b *Builder[K, V]) addBucketFor(k K) (*bucket.Writer[V], error) {
	path := b.bucketPath(k)
	if _, err := os.Stat(path); err == nil {
		return nil, errors.E(errors.Exists, "index.Insert: bucket file for "+k.String()+" already exists")
	}

	perBucket := b.cacheBytes / (b.tree.Len() + 1)
	var resizeErr error
	b.tree.Ascend(func(item keyedWriter[K, V]) bool {
		if err := item.writer.SetCacheSize(perBucket); err != nil {
			resizeErr = err
			return false
		}
		return true
	})
	if resizeErr != nil {
		return nil, resizeErr
	}

	w, err := bucket.Create[V](path, b.valueCodec, perBucket)
	if err != nil {
		return nil, err
	}
	b.tree.ReplaceOrInsert(keyedWriter[K, V]{key: k, writer: w})
	return w, nil
}

// Insert appends v to k's bucket, creating the bucket on first use.
func (b *Builder[K, V]) Insert(k K, v V) error {
	if found, ok := b.tree.Get(keyedWriter[K, V]{key: k}); ok {
		return found.writer.PushBack(v)
	}
	w, err := b.addBucketFor(k)
	if err != nil {
		return err
	}
	return w.PushBack(v)
}

// Shuffle flushes every bucket, then shuffles each in turn using the
// builder's full cache budget as that bucket's shuffle buffer.
// onProgress, if non-nil, is called after each bucket is shuffled with
// the number of buckets done so far and the total.
func (b *Builder[K, V]) Shuffle(rng *rand.Rand, tmpDir string, onProgress func(done, total int)) error {
	var flushErr error
	b.tree.Ascend(func(item keyedWriter[K, V]) bool {
		if err := item.writer.Flush(); err != nil {
			flushErr = err
			return false
		}
		return true
	})
	if flushErr != nil {
		return flushErr
	}

	total := b.tree.Len()
	done := 0
	var shuffleErr error
	b.tree.Ascend(func(item keyedWriter[K, V]) bool {
		if err := item.writer.Shuffle(rng, b.cacheBytes, tmpDir, nil); err != nil {
			shuffleErr = err
			return false
		}
		done++
		if onProgress != nil {
			onProgress(done, total)
		}
		return true
	})
	return shuffleErr
}

// Close flushes and closes every bucket, then writes the manifest
// (bucket prefix, key count, keys in ascending order). It cancels the
// on-drop finalizer registered at Create, since the flush it would
// perform has already happened.
func (b *Builder[K, V]) Close() error {
	runtime.SetFinalizer(b, nil)

	var closeErr error
	b.tree.Ascend(func(item keyedWriter[K, V]) bool {
		if err := item.writer.Close(); err != nil {
			closeErr = err
			return false
		}
		return true
	})
	if closeErr != nil {
		return closeErr
	}

	a, err := archive.Create(filepath.Join(b.path, manifestName))
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.WriteHeader(manifestMagic, manifestVersion); err != nil {
		return err
	}
	if err := a.WriteString(b.bucketPrefix); err != nil {
		return err
	}
	if err := a.WriteUint64(uint64(b.tree.Len())); err != nil {
		return err
	}
	var encodeErr error
	b.tree.Ascend(func(item keyedWriter[K, V]) bool {
		if err := b.keyCodec.Encode(a, item.key); err != nil {
			encodeErr = err
			return false
		}
		return true
	})
	return encodeErr
}

// closeNoError backs the on-drop finalizer: a caller that never calls
// Close explicitly still gets its manifest written when the builder is
// garbage collected, but I/O errors from that implicit close are
// logged rather than propagated, mirroring bucket.Writer's finalizer.
func (b *Builder[K, V]) closeNoError() {
	if err := b.Close(); err != nil {
		log.Printf("index: close of %s failed: %v", b.path, err)
	}
}
