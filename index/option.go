// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package index

type config struct {
	bucketPrefix string
}

func newConfig(opts []Option) config {
	c := config{bucketPrefix: "bucket"}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures an index Builder. A Reader takes no options: it
// reads the bucket-filename prefix from the manifest.
type Option func(*config)

// WithBucketPrefix sets the prefix every bucket filename in the index
// directory carries (default "bucket").
func WithBucketPrefix(prefix string) Option {
	return func(c *config) { c.bucketPrefix = prefix }
}
