// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package bucket

import "github.com/grailbio/base/errors"

// ErrOutOfRange is returned by Get when the requested index is at or
// past the bucket's size, by Choose on an empty bucket, and by
// RandomTour when its cache budget holds zero records. Operations that
// require a FixedSizeCodec report a missing one with an Invalid error
// instead.
var ErrOutOfRange = errors.New("bucket: index out of range")

// ErrTourEnded is returned when the current value of an ended tour is
// requested.
var ErrTourEnded = errors.New("bucket: tour has ended")

const (
	magic   = "RACES Bucket"
	version = 0
)
