// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

// Package index implements a directory-backed key-to-bucket mapping:
// a builder fans incoming (key, value) pairs out to one bucket per
// key, and a reader serves per-key random access together with
// without-replacement extraction backed by bucket random tours,
// optionally grouped by a caller-supplied key partition.
package index

// Key is the constraint a type must satisfy to be used as an index
// key: it must be comparable (so it can address a Go map), convert to
// a stable textual form suitable for a filename fragment, and be
// totally ordered, since the manifest lists keys in ascending order.
type Key[K any] interface {
	comparable
	String() string
	Less(other K) bool
}

// Partition groups keys that a caller treats as equivalent for the
// purposes of class-aware extraction. The default partition, Identity,
// places every key in a singleton class of itself.
type Partition[K any] interface {
	// ClassOf returns every key equivalent to k, including k itself,
	// in a fixed canonical order.
	ClassOf(k K) []K
}

// Identity is the default key partition: every key forms a class of
// exactly one member, itself.
type Identity[K any] struct{}

func (Identity[K]) ClassOf(k K) []K { return []K{k} }
