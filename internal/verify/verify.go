// Package verify implements the pre-installation verification pipeline:
// existence, minimum size, checksum, signature, and structural inspection,
// in that order, short-circuiting on the first failure. Cheap local checks
// run before anything that spawns a subprocess.
package verify

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
	"github.com/ebarretto/sideload/internal/security"
)

// Verifier runs integrity and authenticity checks against package files
type Verifier struct {
	cfg    *config.Config
	runner helpers.CommandRunner
	log    *zerolog.Logger
}

// New creates a Verifier backed by the host's real commands
func New(cfg *config.Config, log *zerolog.Logger) *Verifier {
	return NewWithRunner(cfg, log, helpers.NewOSCommandRunner())
}

// NewWithRunner creates a Verifier with a custom command runner, used by
// tests to avoid spawning real package-manager processes.
func NewWithRunner(cfg *config.Config, log *zerolog.Logger, runner helpers.CommandRunner) *Verifier {
	return &Verifier{
		cfg:    cfg,
		runner: runner,
		log:    log,
	}
}

// VerifyPackage runs the requested checks in a fixed order and stops at the
// first failure. The returned error is nil exactly when the result is OK;
// callers must treat any failure as "do not install".
func (v *Verifier) VerifyPackage(ctx context.Context, artifact core.PackageArtifact, req core.VerificationRequest) (core.VerificationResult, error) {
	result := core.VerificationResult{
		Checksum:   core.CheckNotRun,
		Signature:  core.CheckNotRun,
		Structural: core.CheckNotRun,
	}

	info, err := os.Stat(artifact.Path)
	if err != nil || info.IsDir() {
		result.Summary = fmt.Sprintf("package file not found: %s", artifact.Path)
		return result, core.NewError(core.KindPackageNotFound, result.Summary).
			WithSuggestion("check the path and try again")
	}
	result.Exists = true
	result.Size = info.Size()

	// Fast-path guard against empty or truncated downloads, applied
	// regardless of which checks were requested.
	if result.Size < v.cfg.Verify.MinSizeBytes {
		result.Summary = fmt.Sprintf("file is too small to be a valid package (%d bytes, minimum %d)",
			result.Size, v.cfg.Verify.MinSizeBytes)
		return result, core.NewError(core.KindInvalidPackage, result.Summary).
			WithSuggestion("the download may be incomplete, fetch the package again")
	}

	if req.ExpectedChecksum != "" {
		computed, err := v.ComputeChecksum(artifact.Path, req.Algorithm)
		if err != nil {
			result.Checksum = core.CheckFailed
			result.Summary = fmt.Sprintf("checksum computation failed: %v", err)
			return result, core.WrapError(core.KindVerificationFailed, "checksum computation failed", err)
		}
		expected := security.NormalizeChecksum(req.ExpectedChecksum)
		if computed != expected {
			result.Checksum = core.CheckFailed
			mismatch := core.NewChecksumMismatchError(expected, computed)
			result.Summary = mismatch.Message
			return result, mismatch
		}
		result.Checksum = core.CheckPassed
		v.log.Debug().
			Str("package", artifact.Path).
			Str("algorithm", string(req.Algorithm)).
			Msg("checksum verified")
	}

	if req.VerifySignature {
		valid, detail := v.VerifySignature(ctx, artifact.Path, artifact.Format)
		if !valid {
			result.Signature = core.CheckFailed
			sigErr := core.NewSignatureError(detail)
			result.Summary = sigErr.Message
			return result, sigErr
		}
		result.Signature = core.CheckPassed
	}

	if req.VerifyIntegrity {
		ok, detail := v.CheckStructuralIntegrity(ctx, artifact.Path, artifact.Format)
		if !ok {
			result.Structural = core.CheckFailed
			structErr := core.NewStructuralError(detail)
			result.Summary = structErr.Message
			return result, structErr
		}
		result.Structural = core.CheckPassed
		if detail != "" {
			v.log.Debug().Str("package", artifact.Path).Msg(detail)
		}
	}

	result.OK = true
	result.Summary = "all requested checks passed"
	return result, nil
}
