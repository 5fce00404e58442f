package verify

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/ebarretto/sideload/internal/core"
)

// checksumChunkSize bounds memory use while hashing arbitrarily large files
const checksumChunkSize = 8192

// ComputeChecksum reads the file in fixed-size chunks and returns the hex
// digest for the given algorithm.
func (v *Verifier) ComputeChecksum(path string, algo core.ChecksumAlgorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open package for hashing: %w", err)
	}
	defer func() { _ = f.Close() }()

	return v.ComputeChecksumReader(f, algo)
}

// ComputeChecksumReader digests an already-open stream with the same
// chunked reads. The caller owns the reader's lifecycle.
func (v *Verifier) ComputeChecksumReader(r io.Reader, algo core.ChecksumAlgorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("read package for hashing: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// newHash maps an algorithm name to its hash constructor. MD5 and SHA-1 are
// kept for comparing against digests published by upstreams that still use
// them, not as a security boundary.
func newHash(algo core.ChecksumAlgorithm) (hash.Hash, error) {
	switch algo {
	case core.AlgoSHA256, "":
		return sha256.New(), nil
	case core.AlgoMD5:
		return md5.New(), nil //nolint:gosec
	case core.AlgoSHA1:
		return sha1.New(), nil //nolint:gosec
	case core.AlgoSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}
}
