package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format represents the package format of an artifact
type Format string

const (
	FormatDeb     Format = "deb"
	FormatRpm     Format = "rpm"
	FormatSnap    Format = "snap"
	FormatFlatpak Format = "flatpak"
	FormatUnknown Format = "unknown"
)

// DetectFormat derives the package format from the file extension.
// Extension is the sole detection mechanism; file contents are never sniffed.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".deb":
		return FormatDeb
	case ".rpm":
		return FormatRpm
	case ".snap":
		return FormatSnap
	case ".flatpak":
		return FormatFlatpak
	default:
		return FormatUnknown
	}
}

// SupportedFormats lists the formats an installation backend exists for.
func SupportedFormats() []Format {
	return []Format{FormatDeb, FormatRpm, FormatSnap, FormatFlatpak}
}

// PackageArtifact is an immutable description of one local package file.
// Format and size are fixed at construction and never re-derived.
type PackageArtifact struct {
	Path   string
	Format Format
	Size   int64
}

// NewArtifact builds a PackageArtifact from a file path. The path is made
// absolute; a missing file yields size 0 and is reported later by
// verification, not here.
func NewArtifact(path string) (PackageArtifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return PackageArtifact{}, err
	}

	var size int64
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		size = info.Size()
	}

	return PackageArtifact{
		Path:   abs,
		Format: DetectFormat(abs),
		Size:   size,
	}, nil
}

// Name returns the display name derived from the file name.
func (a PackageArtifact) Name() string {
	return DeriveName(a.Path)
}

// ChecksumAlgorithm identifies a supported digest algorithm
type ChecksumAlgorithm string

const (
	AlgoSHA256 ChecksumAlgorithm = "sha256"
	AlgoMD5    ChecksumAlgorithm = "md5"
	AlgoSHA1   ChecksumAlgorithm = "sha1"
	AlgoSHA512 ChecksumAlgorithm = "sha512"
)

// DefaultAlgorithm is used when no algorithm is requested explicitly.
const DefaultAlgorithm = AlgoSHA256

// ChecksumAlgorithms lists the accepted algorithms.
func ChecksumAlgorithms() []ChecksumAlgorithm {
	return []ChecksumAlgorithm{AlgoSHA256, AlgoMD5, AlgoSHA1, AlgoSHA512}
}

// ParseAlgorithm validates a user-supplied algorithm name.
func ParseAlgorithm(name string) (ChecksumAlgorithm, error) {
	algo := ChecksumAlgorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range ChecksumAlgorithms() {
		if algo == known {
			return algo, nil
		}
	}
	return "", NewError(KindInvalidPackage, "unknown checksum algorithm: "+name).
		WithSuggestion("use one of: sha256, md5, sha1, sha512")
}

// CheckState is the tri-state outcome of one verification sub-check
type CheckState int

const (
	CheckNotRun CheckState = iota
	CheckPassed
	CheckFailed
)

// String returns a human-readable state label
func (s CheckState) String() string {
	switch s {
	case CheckPassed:
		return "passed"
	case CheckFailed:
		return "failed"
	default:
		return "not checked"
	}
}

// VerificationRequest configures which checks verification performs
type VerificationRequest struct {
	VerifyIntegrity  bool
	VerifySignature  bool
	ExpectedChecksum string
	Algorithm        ChecksumAlgorithm
}

// VerificationResult reports the outcome of every requested check.
// OK is false whenever any requested sub-check failed; there is no
// partially successful verification.
type VerificationResult struct {
	Exists     bool
	Size       int64
	Checksum   CheckState
	Signature  CheckState
	Structural CheckState
	OK         bool
	Summary    string
}

// InstallOutcome is the result of one installation attempt
type InstallOutcome struct {
	Success  bool
	Message  string
	Kind     ErrorKind
	Backend  string
	Duration time.Duration
}

// HistoryEntry is one persisted installation record
type HistoryEntry struct {
	ID        int64     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"package"`
	Name      string    `json:"package_name"`
	Format    Format    `json:"format"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
}

// Exit codes returned by the CLI process
const (
	ExitSuccess        = 0
	ExitGeneral        = 1
	ExitInvalidArgs    = 2
	ExitVerification   = 3
	ExitInstallFailed  = 4
	ExitBackendMissing = 5
	ExitTimeout        = 6
	ExitPermission     = 7
	ExitHistory        = 8
	ExitInterrupted    = 130
)
