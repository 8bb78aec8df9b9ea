package hashring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_KnownVectors(t *testing.T) {
	// Reference CRC32-IEEE values, shifted and masked per spec.
	// CRC32("a") = 0xE8B7BE43 -> 0x68B7; CRC32("abc") = 0x352441C2 -> 0x3524.
	assert.Equal(t, uint32(0), Hash([]byte("")))
	assert.Equal(t, uint32(26807), Hash([]byte("a")))
	assert.Equal(t, uint32(13604), Hash([]byte("abc")))
}

func TestHash_Deterministic(t *testing.T) {
	for _, s := range []string{"", "a", "abc", "ns:key", "long-key-with-more-bytes-than-usual"} {
		assert.Equal(t, Hash([]byte(s)), Hash([]byte(s)))
	}
}

func TestPerturb_ChangesAcrossTries(t *testing.T) {
	key := []byte("mykey")
	base := Hash(key)
	h0 := Perturb(key, base, 0)
	h1 := Perturb(key, base, 1)
	assert.NotEqual(t, h0, h1)
}

func TestBucketRing_WeightedLength(t *testing.T) {
	r := NewBucketRing()
	r.SetServers([]Entry{
		{Node: "a", Weight: 1},
		{Node: "b", Weight: 2},
	})
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Count())
}

func TestBucketRing_WeightProportional(t *testing.T) {
	r := NewBucketRing()
	r.SetServers([]Entry{
		{Node: "a", Weight: 1},
		{Node: "b", Weight: 2},
		{Node: "c", Weight: 5},
	})

	counts := make(map[any]int)
	for i := 0; i < r.Len(); i++ {
		node, ok := r.At(i)
		assert.True(t, ok)
		counts[node]++
	}

	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 2, counts["b"])
	assert.Equal(t, 5, counts["c"])
}

func TestBucketRing_EmptyRing(t *testing.T) {
	r := NewBucketRing()
	_, ok := r.At(0)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Count())
}

func TestBucketRing_SelectionStable(t *testing.T) {
	r := NewBucketRing()
	r.SetServers([]Entry{
		{Node: "a", Weight: 3},
		{Node: "b", Weight: 5},
	})

	h := Hash([]byte("some-key"))
	first, ok := r.At(int(h))
	assert.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := r.At(int(h))
		assert.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestBucketRing_SetServersReplacesAtomically(t *testing.T) {
	r := NewBucketRing()
	r.SetServers([]Entry{{Node: "a", Weight: 1}})
	assert.Equal(t, 1, r.Count())

	r.SetServers([]Entry{{Node: "b", Weight: 1}, {Node: "c", Weight: 1}})
	assert.Equal(t, 2, r.Count())
	nodes := r.Nodes()
	assert.ElementsMatch(t, []any{"b", "c"}, nodes)
}
