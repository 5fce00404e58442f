package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebarretto/sideload/internal/core"
)

func TestNewVerifyCmd(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	cmd := NewVerifyCmd(cfg, &log)

	assert.NotNil(t, cmd)
	assert.Equal(t, "verify <package>", cmd.Use)

	for _, flag := range []string{"checksum", "algorithm", "signature", "no-integrity"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestVerifyCmd_PackageNotFound(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)
	cmd := NewVerifyCmd(cfg, &log)

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	cmd.SetArgs([]string{"/nonexistent/package.deb"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, core.KindPackageNotFound, core.KindOf(err))
}

func TestVerifyCmd_RejectsTruncatedFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	dir := t.TempDir()
	pkg := filepath.Join(dir, "tiny.deb")
	require.NoError(t, os.WriteFile(pkg, []byte("stub"), 0o644))

	cmd := NewVerifyCmd(cfg, &log)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{pkg})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, core.KindInvalidPackage, core.KindOf(err))
}

func TestVerifyCmd_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	dir := t.TempDir()
	pkg := filepath.Join(dir, "app.deb")
	require.NoError(t, os.WriteFile(pkg, bytes.Repeat([]byte("payload"), 200), 0o644))

	cmd := NewVerifyCmd(cfg, &log)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	wrong := hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32))
	cmd.SetArgs([]string{pkg, "--checksum", wrong, "--no-integrity"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, core.KindVerificationFailed, core.KindOf(err))
	assert.Contains(t, err.Error(), "checksum")
}

func TestVerifyCmd_ChecksumMatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	content := bytes.Repeat([]byte("payload"), 200)
	dir := t.TempDir()
	pkg := filepath.Join(dir, "app.deb")
	require.NoError(t, os.WriteFile(pkg, content, 0o644))

	sum := sha256.Sum256(content)

	cmd := NewVerifyCmd(cfg, &log)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{pkg, "--checksum", hex.EncodeToString(sum[:]), "--no-integrity"})

	require.NoError(t, cmd.Execute())
}
