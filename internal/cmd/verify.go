package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/security"
	"github.com/ebarretto/sideload/internal/ui"
	"github.com/ebarretto/sideload/internal/verify"
)

// NewVerifyCmd creates the verify command
func NewVerifyCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		checksum    string
		algorithm   string
		signature   bool
		noIntegrity bool
	)

	cmd := &cobra.Command{
		Use:   "verify <package>",
		Short: "Verify a package file without installing it",
		Long: `Run the full verification pipeline (existence, size, checksum, signature,
structural integrity) on a package file and print a per-check report.
Nothing is installed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			algo, err := resolveAlgorithm(cfg, algorithm)
			if err != nil {
				return err
			}

			if checksum != "" {
				checksum = security.NormalizeChecksum(checksum)
				if err := security.ValidateChecksum(checksum, algo); err != nil {
					return core.WrapError(core.KindInvalidPackage, "invalid checksum", err)
				}
			}

			if err := security.ValidateArtifactPath(args[0]); err != nil {
				return core.WrapError(core.KindInvalidPackage, "invalid package path", err)
			}

			artifact, err := core.NewArtifact(args[0])
			if err != nil {
				return err
			}

			req := core.VerificationRequest{
				VerifyIntegrity:  cfg.Verify.Integrity && !noIntegrity,
				VerifySignature:  signature || cfg.Verify.Signature,
				ExpectedChecksum: checksum,
				Algorithm:        algo,
			}

			result, verr := verify.New(cfg, log).VerifyPackage(ctx, artifact, req)
			printVerificationReport(artifact, result)
			return verr
		},
	}

	cmd.Flags().StringVar(&checksum, "checksum", "", "expected hex digest")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "checksum algorithm: sha256, md5, sha1, sha512")
	cmd.Flags().BoolVar(&signature, "signature", false, "require a valid detached signature")
	cmd.Flags().BoolVar(&noIntegrity, "no-integrity", false, "skip the structural integrity check")

	return cmd
}

func printVerificationReport(artifact core.PackageArtifact, result core.VerificationResult) {
	ui.PrintHeader(artifact.Name())
	ui.PrintKeyValue("File", artifact.Path)
	ui.PrintKeyValue("Format", ui.ColorizeFormat(string(artifact.Format)))
	ui.PrintKeyValue("Size", humanSize(result.Size))
	ui.PrintKeyValue("Exists", yesNo(result.Exists))
	ui.PrintKeyValue("Checksum", checkStateLabel(result.Checksum))
	ui.PrintKeyValue("Signature", checkStateLabel(result.Signature))
	ui.PrintKeyValue("Structural", checkStateLabel(result.Structural))
	ui.PrintSeparator()

	if result.OK {
		ui.PrintSuccess("%s", result.Summary)
	} else {
		ui.PrintError("%s", result.Summary)
	}
}

func checkStateLabel(state core.CheckState) string {
	switch state {
	case core.CheckPassed:
		return ui.SprintSuccess("passed")
	case core.CheckFailed:
		return ui.SprintError("failed")
	default:
		return "not checked"
	}
}

func yesNo(ok bool) string {
	if ok {
		return ui.SprintSuccess("yes")
	}
	return ui.SprintError("no")
}
