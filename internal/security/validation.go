package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ebarretto/sideload/internal/core"
)

var hexDigestRegex = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// digestLengths maps each algorithm to its hex digest length
var digestLengths = map[core.ChecksumAlgorithm]int{
	core.AlgoMD5:    32,
	core.AlgoSHA1:   40,
	core.AlgoSHA256: 64,
	core.AlgoSHA512: 128,
}

// ValidateArtifactPath validates a user-supplied package path before it is
// handed to stat, hashing, or an elevated subprocess. Arguments are always
// passed as separate argv entries, so this guards against truncation and
// control-character tricks rather than shell interpolation.
func ValidateArtifactPath(path string) error {
	// 1. Reject empty input
	if path == "" {
		return fmt.Errorf("package path cannot be empty")
	}

	// 2. Cap length before inspecting content
	if len(path) >= 4096 {
		return fmt.Errorf("package path too long (max 4096 characters)")
	}

	// 3. Null bytes truncate paths at the syscall boundary
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("package path contains null byte")
	}

	// 4. Control characters never appear in legitimate file names
	for _, r := range path {
		if r < 32 {
			return fmt.Errorf("package path contains control character")
		}
	}

	return nil
}

// ValidateChecksum validates a user-supplied expected digest against the
// chosen algorithm. The digest must be hex and exactly the algorithm's
// output length.
func ValidateChecksum(digest string, algo core.ChecksumAlgorithm) error {
	if digest == "" {
		return fmt.Errorf("checksum cannot be empty")
	}

	want, ok := digestLengths[algo]
	if !ok {
		return fmt.Errorf("unknown checksum algorithm: %s", algo)
	}

	if len(digest) != want {
		return fmt.Errorf("checksum length %d does not match %s (want %d hex characters)",
			len(digest), algo, want)
	}

	if !hexDigestRegex.MatchString(digest) {
		return fmt.Errorf("checksum must be hexadecimal")
	}

	return nil
}

// NormalizeChecksum lowercases and trims a digest for comparison
func NormalizeChecksum(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}
