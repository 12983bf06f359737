package delivery

import (
	"hash/fnv"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// probableSet is a minimal Bloom filter over string keys, built directly
// on bits-and-blooms/bitset rather than a higher-level Bloom-filter
// package, since delivery tracking only needs Add/Contains and two
// independent hash functions combined via double hashing.
type probableSet struct {
	bits    *bitset.BitSet
	size    uint
	numHash uint
}

func newProbableSet(expectedItems uint, falsePositiveRate float64) *probableSet {
	m, k := optimalParams(expectedItems, falsePositiveRate)
	return &probableSet{bits: bitset.New(m), size: m, numHash: k}
}

func optimalParams(n uint, p float64) (m, k uint) {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	// m = -(n * ln(p)) / (ln(2)^2); k = (m/n) * ln(2)
	const ln2Sq = 0.4804530139182014
	const ln2 = 0.6931471805599453
	mf := -(float64(n) * math.Log(p)) / ln2Sq
	if mf < 64 {
		mf = 64
	}
	m = uint(mf)
	kf := (mf / float64(n)) * ln2
	if kf < 1 {
		kf = 1
	}
	k = uint(kf)
	return m, k
}

func (s *probableSet) hashes(key string) (uint, uint) {
	h1 := fnv.New64a()
	h1.Write([]byte(key))
	sum1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(key))
	sum2 := h2.Sum64()

	return uint(sum1), uint(sum2)
}

func (s *probableSet) Add(key string) {
	a, b := s.hashes(key)
	for i := uint(0); i < s.numHash; i++ {
		idx := (a + i*b) % s.size
		s.bits.Set(idx)
	}
}

func (s *probableSet) Contains(key string) bool {
	a, b := s.hashes(key)
	for i := uint(0); i < s.numHash; i++ {
		idx := (a + i*b) % s.size
		if !s.bits.Test(idx) {
			return false
		}
	}
	return true
}
