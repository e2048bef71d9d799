// Copyright 2026 Alberto Casagrande. All rights reserved.
// Use of this source code is governed by the MIT
// license that can be found in the LICENSE file.

package idcontext

import "sort"

// Region is a half-open, 0-based interval of a chromosome sequence
// that the scanner must skip entirely, as if it were a run of 'N'
// bases.
type Region struct {
	Begin, End int
}

// Scan discovers every repeated sequence, microhomology, and
// null-context locus in sequence and reports each as a (Context,
// Reference) pair through insert, in the order the original
// BucketBuilder.Insert calls would see them. It never touches a
// filesystem or bucket directly; the caller decides what insert does
// with each pair (typically index.Builder.Insert).
func Scan(chrID uint16, sequence string, maxUnitSize byte, skipRegions []Region, insert func(Context, Reference) error) error {
	seq := []byte(sequence)
	n := len(seq)
	skip := make([]bool, n)
	for _, r := range skipRegions {
		b, e := r.Begin, r.End
		if b < 0 {
			b = 0
		}
		if e > n {
			e = n
		}
		for i := b; i < e; i++ {
			skip[i] = true
		}
	}

	s := &scanner{insert: insert}
	begin := 1
	length := 0
	for i := 0; i < n; i++ {
		c := seq[i]
		if (c != 'N' && c != 'n') && !skip[i] {
			if length == 0 {
				begin = i + 1
			}
			length++
			continue
		}
		if length > 0 {
			if err := s.addContextsFrom(chrID, seq, begin, length, maxUnitSize); err != nil {
				return err
			}
			length = 0
		}
	}
	if length > 0 {
		if err := s.addContextsFrom(chrID, seq, begin, length, maxUnitSize); err != nil {
			return err
		}
	}
	return nil
}

type scanner struct {
	insert func(Context, Reference) error
}

func capUnitSize(u int) byte {
	if u > 5 {
		return 5
	}
	return byte(u)
}

func capRepetitions(r int) byte {
	if r > 6 {
		return 6
	}
	return byte(r)
}

func capHomologySize(h int) byte {
	if h > 5 {
		return 5
	}
	return byte(h)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// addContextsFrom scans one maximal run of admissible bases, begin
// being the run's 1-based absolute start on the chromosome.
func (s *scanner) addContextsFrom(chrID uint16, seq []byte, begin, length int, maxUnitSize byte) error {
	if length < 2 {
		return nil
	}
	run := seq[begin-1 : begin-1+length]
	covered, err := s.addRepetitions(chrID, run, begin, maxUnitSize)
	if err != nil {
		return err
	}
	if err := s.addMicrohomologies(chrID, run, begin, covered); err != nil {
		return err
	}
	return s.addNonRepeatedSeq(chrID, run, begin, covered)
}

// addRepetitions finds every tandem repeat in run via the
// prefix-doubling suffix array scheme, emitting the longest
// repeat found for each unit size at every doubling step.
func (s *scanner) addRepetitions(chrID uint16, run []byte, begin int, maxUnitSize byte) ([]bool, error) {
	length := len(run)
	covered := make([]bool, length)
	sa, classes, numClasses := initSuffixArray(run)

	hMax := (int(maxUnitSize) + 1) / 2
	if hMax > length {
		hMax = length
	}

	h := 1
	for h < hMax {
		nextH := 2 * h
		if err := s.addRepetitionsAtH(chrID, run, begin, h, sa, classes, covered); err != nil {
			return nil, err
		}
		updateSuffixArray(h, sa, classes, &numClasses)
		h = nextH
	}
	if err := s.addRepetitionsAtH(chrID, run, begin, h, sa, classes, covered); err != nil {
		return nil, err
	}
	return covered, nil
}

// initSuffixArray builds the order-1 suffix array of s by a counting
// sort over single characters, along with the class vector that
// groups positions whose order-1 suffix compares equal.
func initSuffixArray(s []byte) (sa []int, classes []int, numClasses int) {
	const alphabetSize = 256
	n := len(s)
	counter := make([]int, alphabetSize)
	for i := 0; i < n; i++ {
		counter[s[i]]++
	}
	for i := 1; i < alphabetSize; i++ {
		counter[i] += counter[i-1]
	}
	sa = make([]int, n)
	for i := 1; i <= n; i++ {
		rev := n - i
		counter[s[rev]]--
		sa[counter[s[rev]]] = rev
	}
	classes = make([]int, n)
	classes[sa[0]] = 0
	numClasses = 1
	for i := 1; i < n; i++ {
		if s[sa[i]] != s[sa[i-1]] {
			numClasses++
		}
		classes[sa[i]] = numClasses - 1
	}
	return sa, classes, numClasses
}

// updateSuffixArray upgrades an (h)-suffix array in place into a
// (2h)-suffix array by counting-sort keyed on the class of each
// suffix offset by h, cycling modulo the sequence length.
func updateSuffixArray(h int, sa, classes []int, numClasses *int) {
	n := len(sa)
	tmpA := make([]int, n)
	for i := 0; i < n; i++ {
		if sa[i] >= h {
			tmpA[i] = sa[i] - h
		} else {
			tmpA[i] = sa[i] + n - h
		}
	}

	counter := make([]int, *numClasses)
	for i := 0; i < n; i++ {
		counter[classes[tmpA[i]]]++
	}
	for i := 1; i < *numClasses; i++ {
		counter[i] += counter[i-1]
	}
	for i := 1; i <= n; i++ {
		curr := tmpA[n-i]
		counter[classes[curr]]--
		sa[counter[classes[curr]]] = curr
	}

	newClasses := make([]int, n)
	newClasses[sa[0]] = 0
	nc := 1
	for i := 1; i < n; i++ {
		curr, prev := sa[i], sa[i-1]
		if classes[curr] != classes[prev] || classes[(curr+h)%n] != classes[(prev+h)%n] {
			nc++
		}
		newClasses[curr] = nc - 1
	}
	copy(classes, newClasses)
	*numClasses = nc
}

// collectCandidates walks the (h)-suffix array and groups adjacent
// entries whose distance is constant and within [h, 2h): each such
// group is a candidate tandem repeat of unit size h+delta, starting
// at the group's first local position and running to its last. It
// returns, for every candidate start position, the best (greatest)
// right endpoint found for each unit size.
func collectCandidates(begin, h int, sa, classes []int) map[int]map[int]int {
	n := len(sa)
	nextH := 2 * h
	candidates := map[int]map[int]int{}

	record := func(rBegin, rEnd, delta int) {
		if rBegin >= rEnd || begin+rBegin <= 1 {
			return
		}
		m, ok := candidates[rBegin]
		if !ok {
			m = map[int]int{}
			candidates[rBegin] = m
		}
		m[h+delta] = rEnd
	}

	rBegin, rEnd, currDelta := sa[0], sa[0], nextH
	for i := 1; i < n; i++ {
		curr, prev := sa[i], sa[i-1]
		delta := curr - prev - h

		if classes[curr] == classes[prev] && curr >= h+prev && curr < nextH+prev &&
			curr+delta < n && classes[curr+delta] == classes[prev+delta] {
			if delta != currDelta && currDelta != nextH {
				record(rBegin, rEnd, currDelta)
				rBegin = curr
			}
			currDelta = delta
			rEnd = curr
		} else {
			record(rBegin, rEnd, currDelta)
			rBegin = curr
			rEnd = curr
			currDelta = nextH
		}
	}
	record(rBegin, rEnd, currDelta)

	return candidates
}

// addRepetitionsAtH emits, for every candidate start position found
// at this doubling step and in ascending start-position order, only
// the longest repeat seen so far for each unit size: a unit size
// already emitted with a shorter span at an earlier start position is
// superseded, never duplicated.
func (s *scanner) addRepetitionsAtH(chrID uint16, run []byte, begin, h int, sa, classes []int, covered []bool) error {
	candidates := collectCandidates(begin, h, sa, classes)

	starts := make([]int, 0, len(candidates))
	for rBegin := range candidates {
		starts = append(starts, rBegin)
	}
	sort.Ints(starts)

	longestEnd := map[int]int{}
	for _, rBegin := range starts {
		unitSizes := candidates[rBegin]
		sizes := make([]int, 0, len(unitSizes))
		for us := range unitSizes {
			sizes = append(sizes, us)
		}
		sort.Ints(sizes)

		for _, unitSize := range sizes {
			rEnd := unitSizes[unitSize]
			if prevEnd, ok := longestEnd[unitSize]; ok && prevEnd >= rEnd {
				continue
			}
			longestEnd[unitSize] = rEnd
			if err := s.addRepetition(chrID, run, begin, unitSize, rBegin, rEnd, covered); err != nil {
				return err
			}
		}
	}
	return nil
}

// addRepetition records the repeat [rBegin, rEnd] of the given unit
// size as covered and inserts its context and reference. rBegin and
// rEnd are local (0-based) offsets into run.
func (s *scanner) addRepetition(chrID uint16, run []byte, begin, unitSize, rBegin, rEnd int, covered []bool) error {
	repBegin := rBegin + begin
	if repBegin <= 1 {
		return nil
	}
	numRepetitions := 1 + (rEnd-rBegin)/unitSize
	if err := s.addPolymer(chrID, repBegin, numRepetitions, run[rBegin:], unitSize); err != nil {
		return err
	}
	end := rEnd + unitSize
	if end > len(covered) {
		end = len(covered)
	}
	for i := rBegin; i < end; i++ {
		covered[i] = true
	}
	return nil
}

// addPolymer inserts the context/reference pair for a single
// (homo|hetero)-polymer occurrence: unit[0] is the occurrence's first
// base, used directly as a homopolymer's unit base.
func (s *scanner) addPolymer(chrID uint16, absPos, numRepetitions int, unit []byte, unitSize int) error {
	var ctx Context
	if unitSize == 1 {
		ctx = ForHomopolymer(unit[0], capRepetitions(numRepetitions))
	} else {
		ctx = ForHeteropolymer(capUnitSize(unitSize), capRepetitions(numRepetitions))
	}
	ref := NewReference(chrID, uint64(absPos), byte(unitSize))
	return s.insert(ctx, ref)
}

// addMicrohomologies probes every uncovered base i after the run's
// first against each uncovered position j from i+2 up to 50 bases
// ahead. For every j where the bases starting at j repeat those
// starting at i for at least one and fewer than j-i positions, it
// records a microhomology of distance j-i and that match length.
func (s *scanner) addMicrohomologies(chrID uint16, run []byte, begin int, covered []bool) error {
	n := len(covered)
	if n < 3 {
		return nil
	}
	for i := 1; i < n-2; i++ {
		if covered[i] {
			continue
		}
		head := i
		limit := minInt(n-1, i+50)
		for j := i + 2; j < limit && !covered[j]; j++ {
			headZ, tailZ := head, j
			for tailZ < limit && !covered[tailZ] && run[headZ] == run[tailZ] && headZ < j {
				headZ++
				tailZ++
			}
			if head < headZ && headZ < j {
				homologyDistance := j - i
				homologySize := headZ - head
				ctx := ForMicrohomology(capUnitSize(homologyDistance), capHomologySize(homologySize))
				ref := NewReference(chrID, uint64(begin+i), byte(homologySize))
				if err := s.insert(ctx, ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// addNonRepeatedSeq sweeps the uncovered bases of run. For every
// uncovered gap that is followed by a covered base, and for every unit
// size in [2,6), it emits at each gap offset j with j+unitSize inside
// the gap a single-occurrence heteropolymer at j and a null
// (zero-repeat) heteropolymer at the next position; a gap that reaches
// the end of the run gets no heteropolymer contexts. Every uncovered
// base also yields a single-occurrence homopolymer, and when the same
// base last occurred more than 4 bases earlier (counting a gap's start
// as an occurrence of every base), null homopolymers of that base are
// emitted at every position from three bases after the earlier
// occurrence to two bases before the later one.
func (s *scanner) addNonRepeatedSeq(chrID uint16, run []byte, begin int, covered []bool) error {
	n := len(covered)
	beginUncovered := 0
	lastChar := map[byte]int{}

	for i := 0; i < n; i++ {
		if covered[i] {
			if beginUncovered != i {
				for unitSize := 2; unitSize < 6; unitSize++ {
					for j := beginUncovered; j+unitSize < i; j++ {
						if err := s.addRepetition(chrID, run, begin, unitSize, j, j, covered); err != nil {
							return err
						}
						if err := s.addNullHeteropolymer(chrID, unitSize, begin, j); err != nil {
							return err
						}
					}
				}
			}
			beginUncovered = i + 1
			continue
		}

		if beginUncovered == i {
			lastChar['A'], lastChar['C'], lastChar['G'], lastChar['T'] = i, i, i, i
		}
		currChar := run[i]
		if lastChar[currChar]+4 < i {
			for j := lastChar[currChar] + 2; j < i-2; j++ {
				if err := s.addNullHomopolymer(i, run, chrID, begin, j); err != nil {
					return err
				}
			}
		}
		lastChar[currChar] = i
		if err := s.addRepetition(chrID, run, begin, 1, i, i, covered); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) addNullHeteropolymer(chrID uint16, unitSize, begin, rBegin int) error {
	repBegin := rBegin + begin + 1
	ctx := ForHeteropolymer(capUnitSize(unitSize), 0)
	ref := NewReference(chrID, uint64(repBegin), byte(unitSize))
	return s.insert(ctx, ref)
}

func (s *scanner) addNullHomopolymer(nucleotideIndex int, run []byte, chrID uint16, begin, rBegin int) error {
	absPos := rBegin + begin + 1
	return s.addPolymer(chrID, absPos, 0, run[nucleotideIndex:], 1)
}
