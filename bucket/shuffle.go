// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/spaolacci/murmur3"

	"github.com/acasagrande/races-core/archive"
)

// shuffleOnDisk implements the external-memory random-chunk-partition
// shuffle: values are streamed once into a pool of temporary chunk
// files, each chunk chosen uniformly among the currently non-full
// chunks, then every chunk is loaded, Fisher-Yates shuffled, and
// appended back to the bucket file in turn. onProgress, if non-nil, is
// called after every chunkValues-th value partitioned and after every
// chunk reassembled.
func (w *Writer[V]) shuffleOnDisk(rng *rand.Rand, fc FixedSizeCodec[V], bufferBytes int, tmpDir string, onProgress func(done, total int)) error {
	s := fc.Size()
	chunkValues := (bufferBytes / 2) / s
	if chunkValues <= 0 {
		return errors.E(errors.Invalid, "bucket.Shuffle: buffer smaller than two records")
	}
	numChunks := int((w.size + uint64(chunkValues) - 1) / uint64(chunkValues))

	chunkPaths := make([]string, numChunks)
	chunkWriters := make([]*archive.Archive, numChunks)
	chunkCounts := make([]int, numChunks)
	defer func() {
		for _, cw := range chunkWriters {
			if cw != nil {
				cw.Close()
			}
		}
		for _, p := range chunkPaths {
			if p != "" {
				os.Remove(p)
			}
		}
	}()
	for i := range chunkPaths {
		path, err := newChunkFilePath(tmpDir, i)
		if err != nil {
			return err
		}
		cw, err := archive.Create(path)
		if err != nil {
			return err
		}
		chunkPaths[i] = path
		chunkWriters[i] = cw
	}

	// active holds the indices, into chunkPaths/chunkWriters/chunkCounts,
	// of chunks that are not yet full.
	active := make([]int, numChunks)
	for i := range active {
		active[i] = i
	}

	if err := w.w.Seek(w.dataOffset); err != nil {
		return err
	}
	for n := uint64(0); n < w.size; n++ {
		v, err := fc.Decode(w.w)
		if err != nil {
			return err
		}
		pick := rng.Intn(len(active))
		chunk := active[pick]
		if err := fc.Encode(chunkWriters[chunk], v); err != nil {
			return err
		}
		chunkCounts[chunk]++
		if chunkCounts[chunk] >= chunkValues {
			active[pick] = active[len(active)-1]
			active = active[:len(active)-1]
		}
		if onProgress != nil && (n+1)%uint64(chunkValues) == 0 {
			onProgress(int(n+1), int(w.size))
		}
	}

	if err := w.w.Truncate(w.dataOffset); err != nil {
		return err
	}
	if err := w.w.Seek(w.dataOffset); err != nil {
		return err
	}
	for i, cw := range chunkWriters {
		if err := cw.Close(); err != nil {
			return err
		}
		chunkWriters[i] = nil
		if err := w.appendShuffledChunk(chunkPaths[i], fc, rng); err != nil {
			return err
		}
		os.Remove(chunkPaths[i])
		chunkPaths[i] = ""
		if onProgress != nil {
			onProgress(i+1, numChunks)
		}
	}
	return nil
}

// appendShuffledChunk loads every value from the chunk file at path,
// Fisher-Yates shuffles them, and appends the result to w's current
// write position.
func (w *Writer[V]) appendShuffledChunk(path string, fc FixedSizeCodec[V], rng *rand.Rand) error {
	cr, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer cr.Close()
	size, err := cr.Size()
	if err != nil {
		return err
	}
	n := int(size) / fc.Size()
	values := make([]V, n)
	for i := range values {
		v, err := fc.Decode(cr)
		if err != nil {
			return err
		}
		values[i] = v
	}
	fisherYates(values, rng)
	for _, v := range values {
		if err := fc.Encode(w.w, v); err != nil {
			return err
		}
	}
	return nil
}

// newChunkFilePath returns a path within tmpDir guaranteed, at the
// moment of the check, not to collide with any existing file. Names
// are derived by hashing the directory, the process ID, and the chunk
// index, the same fingerprinting idiom the teacher uses to derive
// deterministic-but-collision-resistant storage paths from a key
// (frame/ops.go's murmur3-hashed sharding, exec/store.go's fnv-hashed
// fileStore.path()).
func newChunkFilePath(tmpDir string, index int) (string, error) {
	for attempt := 0; attempt < 1<<20; attempt++ {
		seed := fmt.Sprintf("%s\x00%d\x00%d\x00%d", tmpDir, os.Getpid(), index, attempt)
		h := murmur3.Sum32WithSeed([]byte(seed), uint32(index))
		name := filepath.Join(tmpDir, fmt.Sprintf("bucket-shuffle-%08x.tmp", h))
		if _, err := os.Stat(name); os.IsNotExist(err) {
			return name, nil
		}
	}
	return "", errors.E(errors.Invalid, "bucket.Shuffle: could not allocate a chunk file name")
}
