package index

import (
	"encoding/binary"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/talaria-db/talaria/internal/hashing"
)

// BloomFilter is a fixed-size bloom filter over chunk/sequence hashes,
// used for O(1) "definitely absent" existence checks ahead of a real
// KV lookup. It never produces false negatives; it may produce false
// positives at roughly the configured rate.
type BloomFilter struct {
	bits      *bitset.BitSet
	size      uint
	hashCount uint
}

// NewBloomFilter sizes a filter for expectedItems entries at the given
// target false-positive rate, using the standard optimal-size and
// optimal-hash-count formulas.
func NewBloomFilter(expectedItems uint64, falsePositiveRate float64) *BloomFilter {
	size := optimalSize(expectedItems, falsePositiveRate)
	hashCount := optimalHashCount(size, expectedItems)
	return &BloomFilter{
		bits:      bitset.New(uint(size)),
		size:      uint(size),
		hashCount: uint(hashCount),
	}
}

func optimalSize(n uint64, p float64) uint64 {
	ln2 := math.Ln2
	m := math.Ceil((-1.0 * float64(n) * math.Log(p)) / (ln2 * ln2))
	if m < 1 {
		m = 1
	}
	return uint64(m)
}

func optimalHashCount(m uint64, n uint64) uint64 {
	if n == 0 {
		return 1
	}
	ln2 := math.Ln2
	k := math.Round((float64(m) / float64(n)) * ln2)
	if k < 1 {
		k = 1
	}
	return uint64(k)
}

// Insert adds hash to the filter.
func (b *BloomFilter) Insert(hash hashing.Hash) {
	for i := uint(0); i < b.hashCount; i++ {
		b.bits.Set(b.hashIndex(hash, i))
	}
}

// MayContain reports whether hash might be in the set. A false result
// is a guarantee of absence; a true result may be a false positive.
func (b *BloomFilter) MayContain(hash hashing.Hash) bool {
	for i := uint(0); i < b.hashCount; i++ {
		if !b.bits.Test(b.hashIndex(hash, i)) {
			return false
		}
	}
	return true
}

// hashIndex derives the i-th hash function's bucket from the first
// three 8-byte words of the SHA-256 digest for i = 0..2, and from a
// byte mix of the digest, offset by i, for any hash function beyond
// the third.
func (b *BloomFilter) hashIndex(hash hashing.Hash, i uint) uint {
	var word uint64
	switch i {
	case 0:
		word = binary.LittleEndian.Uint64(hash[0:8])
	case 1:
		word = binary.LittleEndian.Uint64(hash[8:16])
	case 2:
		word = binary.LittleEndian.Uint64(hash[16:24])
	default:
		for j := 0; j < 8; j++ {
			word = (word << 8) | uint64(hash[(int(i)*7+j)%hashing.Size])
		}
	}
	return uint(word % uint64(b.size))
}

// EstimateCount approximates the number of distinct items inserted,
// from the fraction of set bits.
func (b *BloomFilter) EstimateCount() uint64 {
	ones := float64(b.bits.Count())
	if ones == 0 {
		return 0
	}
	size := float64(b.size)
	estimate := -1.0 * size * math.Log(1.0-ones/size) / float64(b.hashCount)
	return uint64(math.Round(estimate))
}

// Bytes packs the filter's bit array for persistence.
func (b *BloomFilter) Bytes() []byte {
	data, _ := b.bits.MarshalBinary()
	return data
}

// LoadBloomFilter restores a filter from its packed bit array, size,
// and hash count (as persisted alongside an index layer's metadata).
func LoadBloomFilter(data []byte, size, hashCount uint64) (*BloomFilter, error) {
	bs := &bitset.BitSet{}
	if err := bs.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &BloomFilter{bits: bs, size: uint(size), hashCount: uint(hashCount)}, nil
}

// Size returns the bit array size.
func (b *BloomFilter) Size() uint64 { return uint64(b.size) }

// HashCount returns the number of hash functions used.
func (b *BloomFilter) HashCount() uint64 { return uint64(b.hashCount) }
