// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package idcontext

var complementBase = map[byte]byte{
	'A': 'T', 'T': 'A', 'C': 'G', 'G': 'C',
}

// HomopolymerReverseComplementClass groups a homopolymer context with
// the homopolymer of its complementary base and the same repetition
// count: on the other strand, a run of A's reads as a run of T's.
// Heteropolymer and microhomology contexts form a class of themselves,
// since the original index has no reverse-complement notion for them.
type HomopolymerReverseComplementClass struct{}

func (HomopolymerReverseComplementClass) ClassOf(c Context) []Context {
	if c.FragmentType() != Homopolymer {
		return []Context{c}
	}
	complement, ok := complementBase[c.UnitBase()]
	if !ok || complement == c.UnitBase() {
		return []Context{c}
	}
	return []Context{c, ForHomopolymer(complement, c.NumOfRepetitions())}
}
