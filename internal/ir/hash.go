package ir

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest of serialized chronicle bytes.
type Digest [32]byte

// String returns the lower-case hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for log lines.
func (d Digest) Short() string {
	return d.String()[:12]
}

// Domain separation keys for BLAKE3 keyed hashing. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes. Changing them
// invalidates every stored digest.
var (
	chronicleDomainKey = [32]byte{
		'i', 's', 'a', 'a', 'c', '/', 'c', 'h', 'r', 'o', 'n', 'i', 'c', 'l', 'e', '/',
		'v', '1', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	summaryDomainKey = [32]byte{
		'i', 's', 'a', 'a', 'c', '/', 's', 'u', 'm', 'm', 'a', 'r', 'y', '/', 'v', '1',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// ChronicleDigest computes the content digest of chronicle bytes.
// Stores record it next to each blob; equal digests mean byte-identical
// data.
func ChronicleDigest(data []byte) Digest {
	return keyedHash(chronicleDomainKey, data)
}

// SummaryDigest computes the digest of a canonical JSON summary.
func SummaryDigest(canonical []byte) Digest {
	return keyedHash(summaryDomainKey, canonical)
}

func keyedHash(key [32]byte, data []byte) Digest {
	// NewKeyed only fails for a key that is not 32 bytes.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("ir: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d
}
