// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package idcontext

import (
	"fmt"

	"github.com/acasagrande/races-core/archive"
)

// GenomicPosition identifies a single base on a chromosome by a
// caller-assigned numeric chromosome identifier and a 1-based
// position within it.
type GenomicPosition struct {
	ChromosomeID uint16
	Position     uint64
}

func (p GenomicPosition) String() string {
	return fmt.Sprintf("chr%d:%d", p.ChromosomeID, p.Position)
}

// Reference is the value half of an ID context index entry: the
// genomic position at which a repeated sequence (or microhomology)
// begins, together with the repeated unit's size (or, for a
// microhomology, its homology size). It is a constant-size on-disk
// record and implements bucket.FixedSizeCodec via ReferenceCodec.
type Reference struct {
	Position GenomicPosition
	UnitSize byte
}

// NewReference builds a Reference from a chromosome id, a 1-based
// position, and a unit/homology size. Every caller in this package
// derives unitSize from an actual repeat or homology span, so it is
// always at least 1; NewReference itself performs no validation.
func NewReference(chrID uint16, begin uint64, unitSize byte) Reference {
	return Reference{Position: GenomicPosition{ChromosomeID: chrID, Position: begin}, UnitSize: unitSize}
}

func (r Reference) String() string {
	return fmt.Sprintf("%d (%s)", r.UnitSize, r.Position)
}

// ReferenceCodec is a bucket.FixedSizeCodec for Reference: a 2-byte
// chromosome id, an 8-byte position, and a 1-byte unit size, all
// little-endian.
type ReferenceCodec struct{}

func (ReferenceCodec) Size() int { return 2 + 8 + 1 }

func (ReferenceCodec) Encode(a *archive.Archive, r Reference) error {
	if err := a.WriteUint16(r.Position.ChromosomeID); err != nil {
		return err
	}
	if err := a.WriteUint64(r.Position.Position); err != nil {
		return err
	}
	return a.WriteBytes([]byte{r.UnitSize})
}

func (ReferenceCodec) Decode(a *archive.Archive) (Reference, error) {
	chrID, err := a.ReadUint16()
	if err != nil {
		return Reference{}, err
	}
	pos, err := a.ReadUint64()
	if err != nil {
		return Reference{}, err
	}
	unitSize, err := a.ReadBytes(1)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Position: GenomicPosition{ChromosomeID: chrID, Position: pos}, UnitSize: unitSize[0]}, nil
}
