package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/security"
	"github.com/ebarretto/sideload/internal/ui"
	"github.com/ebarretto/sideload/internal/verify"
)

// NewChecksumCmd creates the checksum command
func NewChecksumCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "checksum <file>",
		Short: "Compute a file digest",
		Long: `Compute the digest of a local file and print it as "<digest>  <path>",
matching the sha256sum output layout so results can be diffed or piped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := resolveAlgorithm(cfg, algorithm)
			if err != nil {
				return err
			}

			if err := security.ValidateArtifactPath(args[0]); err != nil {
				return core.WrapError(core.KindInvalidPackage, "invalid path", err)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return core.WrapError(core.KindPackageNotFound, "cannot open "+args[0], err)
			}
			defer func() { _ = f.Close() }()

			info, err := f.Stat()
			if err != nil {
				return err
			}

			reader := ui.NewProgressReader(f, info.Size(), "hashing")
			digest, err := verify.New(cfg, log).ComputeChecksumReader(reader, algo)
			_ = reader.Close()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", digest, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", "", "digest algorithm: sha256, md5, sha1, sha512")

	return cmd
}
