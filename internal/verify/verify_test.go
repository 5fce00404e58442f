package verify

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

const signedFileSHA256 = "e994d8a396f31b2b7986addd62a99cc5387e52414ab5b61a0556ec14251b054d"

func testConfig() *config.Config {
	return &config.Config{
		Verify: config.VerifyConfig{
			Integrity:                true,
			MinSizeBytes:             1024,
			StructuralTimeoutSeconds: 10,
			SignatureTimeoutSeconds:  30,
			DefaultAlgorithm:         "sha256",
		},
	}
}

func testVerifier(t *testing.T, runner helpers.CommandRunner) *Verifier {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return NewWithRunner(testConfig(), &logger, runner)
}

func writePackage(t *testing.T, name string, size int) core.PackageArtifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	artifact, err := core.NewArtifact(path)
	require.NoError(t, err)
	return artifact
}

func TestComputeChecksum(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "content.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	v := testVerifier(t, &helpers.MockCommandRunner{})

	tests := []struct {
		algo core.ChecksumAlgorithm
		want string
	}{
		{core.AlgoSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{core.AlgoMD5, "900150983cd24fb0d6963f7d28e17f72"},
		{core.AlgoSHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{core.AlgoSHA512, "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			got, err := v.ComputeChecksum(path, tt.algo)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	t.Run("deterministic across calls", func(t *testing.T) {
		first, err := v.ComputeChecksum(path, core.AlgoSHA256)
		require.NoError(t, err)
		second, err := v.ComputeChecksum(path, core.AlgoSHA256)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("empty algorithm defaults to sha256", func(t *testing.T) {
		got, err := v.ComputeChecksum(path, "")
		require.NoError(t, err)
		require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := v.ComputeChecksum(path, "crc32")
		require.Error(t, err)
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := v.ComputeChecksum(filepath.Join(t.TempDir(), "missing.bin"), core.AlgoSHA256)
		require.Error(t, err)
	})
}

func TestVerifyPackage_MissingFile(t *testing.T) {
	t.Parallel()
	v := testVerifier(t, &helpers.MockCommandRunner{})
	artifact := core.PackageArtifact{Path: "/nonexistent/pkg.deb", Format: core.FormatDeb}

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{})
	require.Error(t, err)
	require.False(t, result.Exists)
	require.False(t, result.OK)
	require.Equal(t, core.KindPackageNotFound, core.KindOf(err))
}

func TestVerifyPackage_TooSmall(t *testing.T) {
	t.Parallel()
	v := testVerifier(t, &helpers.MockCommandRunner{})
	artifact := writePackage(t, "tiny.deb", 100)

	// The size guard applies even with every optional check disabled.
	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{})
	require.Error(t, err)
	require.True(t, result.Exists)
	require.Equal(t, int64(100), result.Size)
	require.False(t, result.OK)
	require.Equal(t, core.KindInvalidPackage, core.KindOf(err))
	require.Contains(t, result.Summary, "too small")
}

func TestVerifyPackage_ChecksumMismatch(t *testing.T) {
	t.Parallel()
	v := testVerifier(t, &helpers.MockCommandRunner{})
	artifact := writePackage(t, "app.deb", 2048)

	expected := strings.Repeat("ab", 32)
	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{
		ExpectedChecksum: expected,
		Algorithm:        core.AlgoSHA256,
	})
	require.Error(t, err)
	require.Equal(t, core.CheckFailed, result.Checksum)
	require.Equal(t, core.KindVerificationFailed, core.KindOf(err))

	// The message must let the user compare both digests directly.
	computed, cerr := v.ComputeChecksum(artifact.Path, core.AlgoSHA256)
	require.NoError(t, cerr)
	require.Contains(t, err.Error(), expected)
	require.Contains(t, err.Error(), computed)
}

func TestVerifyPackage_ChecksumMatch(t *testing.T) {
	t.Parallel()
	v := testVerifier(t, &helpers.MockCommandRunner{})
	artifact := writePackage(t, "app.deb", 2048)

	computed, err := v.ComputeChecksum(artifact.Path, core.AlgoSHA256)
	require.NoError(t, err)

	// Uppercase with padding still matches after normalization.
	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{
		ExpectedChecksum: "  " + strings.ToUpper(computed) + "  ",
		Algorithm:        core.AlgoSHA256,
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, core.CheckPassed, result.Checksum)
	require.Equal(t, core.CheckNotRun, result.Signature)
}

func TestVerifyPackage_StructuralToolAbsent(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return false },
	}
	v := testVerifier(t, runner)
	artifact := writePackage(t, "app.deb", 2048)

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{VerifyIntegrity: true})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, core.CheckPassed, result.Structural)
	require.Empty(t, runner.Calls)
}

func TestVerifyPackage_StructuralFailure(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return name == "dpkg-deb" },
		RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
			return "", "is not a Debian format archive", errors.New("exit status 2")
		},
	}
	v := testVerifier(t, runner)
	artifact := writePackage(t, "broken.deb", 2048)

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{VerifyIntegrity: true})
	require.Error(t, err)
	require.Equal(t, core.CheckFailed, result.Structural)
	require.Equal(t, core.KindVerificationFailed, core.KindOf(err))
	require.Contains(t, err.Error(), "not a Debian format archive")
	require.Len(t, runner.Calls, 1)
	require.Contains(t, runner.Calls[0], "dpkg-deb --info")
}

func TestVerifyPackage_StructuralPasses(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return true },
		RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
			return " new Debian package, version 2.0.", "", nil
		},
	}
	v := testVerifier(t, runner)
	artifact := writePackage(t, "app.deb", 2048)

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{VerifyIntegrity: true})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, core.CheckPassed, result.Structural)
}

func TestVerifyPackage_UnknownFormatSkipsStructural(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return true },
	}
	v := testVerifier(t, runner)
	artifact := writePackage(t, "bundle.flatpak", 2048)

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{VerifyIntegrity: true})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, core.CheckPassed, result.Structural)
	require.Empty(t, runner.Calls)
}

func TestVerifyPackage_SignatureFileMissing(t *testing.T) {
	t.Parallel()
	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return true },
	}
	v := testVerifier(t, runner)
	artifact := writePackage(t, "app.deb", 2048)

	result, err := v.VerifyPackage(context.Background(), artifact, core.VerificationRequest{VerifySignature: true})
	require.Error(t, err)
	require.Equal(t, core.CheckFailed, result.Signature)
	require.Equal(t, core.KindVerificationFailed, core.KindOf(err))
	require.Contains(t, err.Error(), "no signature file found")
	require.Empty(t, runner.Calls)
}

func TestVerifySignature_GPGSubprocess(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pkg := filepath.Join(dir, "app.deb")
	require.NoError(t, os.WriteFile(pkg, make([]byte, 2048), 0644))
	require.NoError(t, os.WriteFile(pkg+".asc", []byte("-----BEGIN PGP SIGNATURE-----"), 0644))

	t.Run("accepts on exit zero", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return name == "gpg" },
			RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
				return "", `gpg: Good signature from "Upstream"`, nil
			},
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatDeb)
		require.True(t, ok)
		require.Empty(t, detail)
		require.Len(t, runner.Calls, 1)
		require.Equal(t, "gpg --verify "+pkg+".asc "+pkg, runner.Calls[0])
	})

	t.Run("rejects on non-zero exit", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return name == "gpg" },
			RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
				return "", "gpg: BAD signature", errors.New("exit status 1")
			},
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatDeb)
		require.False(t, ok)
		require.Contains(t, detail, "BAD signature")
	})

	t.Run("fails when gpg is absent", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return false },
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatDeb)
		require.False(t, ok)
		require.Contains(t, detail, "gpg not available")
	})
}

func TestVerifySignature_RPMEmbedded(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pkg := filepath.Join(dir, "app.rpm")
	require.NoError(t, os.WriteFile(pkg, make([]byte, 2048), 0644))

	t.Run("requires OK in output", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return name == "rpm" },
			RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
				return pkg + ": digests signatures OK", "", nil
			},
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatRpm)
		require.True(t, ok)
		require.Empty(t, detail)
		require.Equal(t, "rpm --checksig "+pkg, runner.Calls[0])
	})

	t.Run("rejects exit zero without OK marker", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return name == "rpm" },
			RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
				return pkg + ": digests SIGNATURES NOT VERIFIED", "", nil
			},
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatRpm)
		require.False(t, ok)
		require.Contains(t, detail, "did not report a valid signature")
	})

	t.Run("fails when rpm is absent", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			CommandExistsFunc: func(name string) bool { return false },
		}
		v := testVerifier(t, runner)
		ok, detail := v.VerifySignature(context.Background(), pkg, core.FormatRpm)
		require.False(t, ok)
		require.Contains(t, detail, "rpm not available")
	})
}

func TestVerifySignature_SigSuffixFallback(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	pkg := filepath.Join(dir, "app.deb")
	require.NoError(t, os.WriteFile(pkg, make([]byte, 2048), 0644))
	// Only the .sig sibling exists, so the probe must fall through .asc.
	require.NoError(t, os.WriteFile(pkg+".sig", []byte{0x89, 0x01}, 0644))

	runner := &helpers.MockCommandRunner{
		CommandExistsFunc: func(name string) bool { return name == "gpg" },
		RunCommandWithOutputFunc: func(ctx context.Context, name string, args ...string) (string, string, error) {
			return "", "", nil
		},
	}
	v := testVerifier(t, runner)
	ok, _ := v.VerifySignature(context.Background(), pkg, core.FormatDeb)
	require.True(t, ok)
	require.Equal(t, "gpg --verify "+pkg+".sig "+pkg, runner.Calls[0])
}
