package hashring

import (
	"hash/crc32"
	"strconv"
)

// crcTable is the IEEE (reflected, poly 0xEDB88320) CRC32 table required for
// wire-compatibility with other memcached clients. Any other hash, however
// fast, would land keys on different servers than a client running this
// exact algorithm against the same server pool.
var crcTable = crc32.MakeTable(crc32.IEEE)

// Hash returns a non-negative bucket-selection hash for key, computed as
// CRC32-IEEE(key) with the low 16 bits discarded and the result masked to
// 15 bits. This is bit-identical to the reference algorithm memcached
// clients have used since the original Perl/Ruby implementations, so keys
// written by one client are retrievable by any other client pointed at the
// same pool.
func Hash(key []byte) uint32 {
	crc := crc32.Checksum(key, crcTable)
	return (crc >> 16) & 0x7fff
}

// Perturb derives the hash used on retry t (0-indexed) for key: base plus the
// hash of the decimal representation of t followed by the key. This walks the
// bucket sequence away from a dead server without remapping the whole
// keyspace.
func Perturb(key []byte, base uint32, try int) uint32 {
	perturbed := append([]byte(strconv.Itoa(try)), key...)
	return base + Hash(perturbed)
}
