package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/ebarretto/sideload/internal/core"
)

// signatureSuffixes lists detached signature siblings in probe order.
var signatureSuffixes = []string{".asc", ".sig"}

// VerifySignature checks package authenticity. RPM packages carry an
// embedded signature checked through rpm itself; every other format needs a
// detached signature file next to the package. Unlike structural
// inspection, a missing verification tool fails the check: a requested
// signature check is never skipped.
func (v *Verifier) VerifySignature(ctx context.Context, path string, format core.Format) (bool, string) {
	if format == core.FormatRpm {
		return v.verifyEmbeddedSignature(ctx, path)
	}
	return v.verifyDetachedSignature(ctx, path)
}

// verifyEmbeddedSignature asks rpm to check the signature stored inside the
// package. rpm exits zero even for some unsigned packages, so the output
// must also contain an OK verdict.
func (v *Verifier) verifyEmbeddedSignature(ctx context.Context, path string) (bool, string) {
	if !v.runner.CommandExists("rpm") {
		return false, "rpm not available, cannot check embedded signature"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, v.cfg.Verify.SignatureTimeout())
	defer cancel()

	stdout, stderr, err := v.runner.RunCommandWithOutput(timeoutCtx, "rpm", "--checksig", path)
	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Sprintf("signature check timed out after %s", v.cfg.Verify.SignatureTimeout())
		}
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return false, fmt.Sprintf("rpm rejected the signature: %s", detail)
	}

	if !strings.Contains(stdout, "OK") {
		return false, fmt.Sprintf("rpm did not report a valid signature: %s", strings.TrimSpace(stdout))
	}

	return true, ""
}

// verifyDetachedSignature resolves the sibling signature file and checks it,
// in-process when a keyring is configured and through gpg otherwise.
func (v *Verifier) verifyDetachedSignature(ctx context.Context, path string) (bool, string) {
	sigPath := findSignatureFile(path)
	if sigPath == "" {
		return false, "no signature file found (.asc or .sig)"
	}

	if v.cfg.Verify.Keyring != "" {
		return v.verifyWithKeyring(path, sigPath)
	}
	return v.verifyWithGPG(ctx, path, sigPath)
}

// verifyWithGPG shells out to gpg, which resolves keys from the user's own
// keyring.
func (v *Verifier) verifyWithGPG(ctx context.Context, path, sigPath string) (bool, string) {
	if !v.runner.CommandExists("gpg") {
		return false, "gpg not available, cannot verify signature"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, v.cfg.Verify.SignatureTimeout())
	defer cancel()

	_, stderr, err := v.runner.RunCommandWithOutput(timeoutCtx, "gpg", "--verify", sigPath, path)
	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Sprintf("signature check timed out after %s", v.cfg.Verify.SignatureTimeout())
		}
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = err.Error()
		}
		return false, fmt.Sprintf("gpg rejected the signature: %s", detail)
	}

	return true, ""
}

// verifyWithKeyring checks the detached signature against the configured
// keyring without shelling out. Both the keyring and the signature may be
// armored or binary, so each read is attempted both ways.
func (v *Verifier) verifyWithKeyring(path, sigPath string) (bool, string) {
	keyring, err := v.loadKeyring()
	if err != nil {
		return false, fmt.Sprintf("load keyring: %v", err)
	}

	pkgFile, err := os.Open(path)
	if err != nil {
		return false, fmt.Sprintf("open package: %v", err)
	}
	defer func() { _ = pkgFile.Close() }()

	sigFile, err := os.Open(sigPath)
	if err != nil {
		return false, fmt.Sprintf("open signature: %v", err)
	}
	defer func() { _ = sigFile.Close() }()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, pkgFile, sigFile, nil)
	if err != nil {
		// Try non-armored signature
		if _, serr := pkgFile.Seek(0, io.SeekStart); serr != nil {
			return false, fmt.Sprintf("rewind package: %v", serr)
		}
		if _, serr := sigFile.Seek(0, io.SeekStart); serr != nil {
			return false, fmt.Sprintf("rewind signature: %v", serr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, pkgFile, sigFile, nil)
	}
	if err != nil {
		return false, fmt.Sprintf("signature does not match keyring: %v", err)
	}

	return true, ""
}

// loadKeyring reads the configured keyring, armored or binary.
func (v *Verifier) loadKeyring() (openpgp.EntityList, error) {
	f, err := os.Open(v.cfg.Verify.Keyring)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer func() { _ = f.Close() }()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		// Try reading as non-armored keyring
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", serr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}

	return keyring, nil
}

// findSignatureFile returns the first existing sibling signature file.
func findSignatureFile(path string) string {
	for _, suffix := range signatureSuffixes {
		candidate := path + suffix
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}
