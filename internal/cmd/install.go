package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ebarretto/sideload/internal/backends"
	"github.com/ebarretto/sideload/internal/batch"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/history"
	"github.com/ebarretto/sideload/internal/retry"
	"github.com/ebarretto/sideload/internal/security"
	"github.com/ebarretto/sideload/internal/ui"
	"github.com/ebarretto/sideload/internal/verify"
)

// installRequest carries the resolved install flags into the single and
// batch code paths.
type installRequest struct {
	noVerify  bool
	signature bool
	checksum  string
	algo      core.ChecksumAlgorithm
	timeout   time.Duration
}

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		noVerify       bool
		signature      bool
		checksum       string
		algorithm      string
		timeoutSecs    int
		assumeYes      bool
		abortOnFailure bool
	)

	cmd := &cobra.Command{
		Use:   "install <package>...",
		Short: "Verify and install local package files",
		Long: `Install one or more local .deb, .rpm, .snap or .flatpak files through the
matching system package manager. Every file is verified before installation
unless --no-verify is given; more than one file runs as an ordered batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			algo, err := resolveAlgorithm(cfg, algorithm)
			if err != nil {
				return err
			}

			if checksum != "" {
				if len(args) > 1 {
					return core.NewError(core.KindInvalidPackage, "--checksum applies to a single package").
						WithSuggestion("install the pinned package on its own")
				}
				checksum = security.NormalizeChecksum(checksum)
				if err := security.ValidateChecksum(checksum, algo); err != nil {
					return core.WrapError(core.KindInvalidPackage, "invalid checksum", err)
				}
			}

			for _, arg := range args {
				if err := security.ValidateArtifactPath(arg); err != nil {
					return core.WrapError(core.KindInvalidPackage, "invalid package path", err)
				}
			}

			log.Info().
				Int("packages", len(args)).
				Bool("no_verify", noVerify).
				Bool("signature", signature).
				Msg("starting installation")

			ledger, err := history.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			timeout := cfg.Install.Timeout()
			if timeoutSecs > 0 {
				timeout = time.Duration(timeoutSecs) * time.Second
			}

			req := installRequest{
				noVerify:  noVerify,
				signature: signature || cfg.Verify.Signature,
				checksum:  checksum,
				algo:      algo,
				timeout:   timeout,
			}

			installer := newRetryingInstaller(cfg, log)

			if len(args) == 1 {
				return installOne(ctx, cfg, log, ledger, installer, args[0], req)
			}
			return installBatch(ctx, cfg, log, ledger, installer, args, req, assumeYes, abortOnFailure)
		},
	}

	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip the verification stage")
	cmd.Flags().BoolVar(&signature, "signature", false, "require a valid detached signature")
	cmd.Flags().StringVar(&checksum, "checksum", "", "expected hex digest (single package only)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "checksum algorithm: sha256, md5, sha1, sha512")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "installation timeout in seconds (0 uses the configured default)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "continue after batch failures without asking")
	cmd.Flags().BoolVar(&abortOnFailure, "abort-on-failure", false, "stop the batch at the first failure")

	return cmd
}

// installOne runs the verify-install pipeline for a single package
func installOne(ctx context.Context, cfg *config.Config, log *zerolog.Logger, ledger core.Ledger, installer *retryingInstaller, path string, req installRequest) error {
	artifact, err := core.NewArtifact(path)
	if err != nil {
		return err
	}

	ui.PrintInfo("installing %s", artifact.Name())

	if !req.noVerify {
		vreq := core.VerificationRequest{
			VerifyIntegrity:  cfg.Verify.Integrity,
			VerifySignature:  req.signature,
			ExpectedChecksum: req.checksum,
			Algorithm:        req.algo,
		}
		if _, err := verify.New(cfg, log).VerifyPackage(ctx, artifact, vreq); err != nil {
			recordOutcome(ctx, log, ledger, artifact, core.InstallOutcome{
				Success: false,
				Message: err.Error(),
				Kind:    core.KindOf(err),
			})
			ui.PrintError("verification failed: %v", err)
			return err
		}
		ui.PrintSuccess("verification passed")
	}

	outcome := installer.Install(ctx, artifact, core.InstallOptions{
		Timeout:  req.timeout,
		Progress: ui.NewInstallSink(false),
	})
	recordOutcome(ctx, log, ledger, artifact, outcome)

	if !outcome.Success {
		ui.PrintError("installation failed: %s", outcome.Message)
		return core.NewError(outcome.Kind, outcome.Message)
	}

	ui.PrintSuccess("%s installed in %s", artifact.Name(), outcome.Duration.Round(time.Millisecond))
	return nil
}

// installBatch queues every path and hands the run to the orchestrator
func installBatch(ctx context.Context, cfg *config.Config, log *zerolog.Logger, ledger core.Ledger, installer *retryingInstaller, paths []string, req installRequest, assumeYes, abortOnFailure bool) error {
	orch := batch.NewWithDeps(cfg, log, verify.New(cfg, log), installer, ledger)

	for _, path := range paths {
		artifact, err := core.NewArtifact(path)
		if err != nil {
			return err
		}
		if !orch.Queue().Add(artifact) {
			ui.PrintWarning("skipping duplicate: %s", artifact.Path)
		}
	}

	if n := orch.Queue().Len(); cfg.Batch.MaxRecommended > 0 && n > cfg.Batch.MaxRecommended {
		ui.PrintWarning("%d packages queued; runs above %d hold the package manager busy for a long time", n, cfg.Batch.MaxRecommended)
	}

	res, err := orch.Run(ctx, batch.RunOptions{
		Verify:          !req.noVerify,
		VerifySignature: req.signature,
		InstallTimeout:  req.timeout,
		Progress:        ui.NewInstallSink(false),
		OnContinue:      continuePolicy(cfg, assumeYes, abortOnFailure),
	})
	if err != nil {
		return err
	}

	printBatchSummary(res)

	if res.Failed > 0 {
		first := firstFailure(res)
		return core.NewError(first.Outcome.Kind,
			fmt.Sprintf("%d of %d packages failed", res.Failed, res.Attempted))
	}
	return nil
}

// continuePolicy resolves the continuation callback from flags and config.
// A nil callback makes the orchestrator abort on the first failure.
func continuePolicy(cfg *config.Config, assumeYes, abortOnFailure bool) batch.ContinueFunc {
	switch {
	case abortOnFailure:
		return nil
	case assumeYes:
		return func(core.PackageArtifact, core.InstallOutcome) bool { return true }
	}

	switch cfg.Batch.ContinueOnFailure {
	case "always":
		return func(core.PackageArtifact, core.InstallOutcome) bool { return true }
	case "never":
		return nil
	default: // "ask"
		return func(artifact core.PackageArtifact, outcome core.InstallOutcome) bool {
			cont, err := ui.ConfirmContinueBatch(artifact.Name(), outcome.Message)
			if err != nil {
				return false
			}
			return cont
		}
	}
}

func printBatchSummary(res batch.RunResult) {
	ui.PrintSeparator()
	switch res.State {
	case batch.StateCompleted:
		if res.Failed == 0 {
			ui.PrintSuccess("%d packages installed", res.Succeeded)
		} else {
			ui.PrintWarning("%d installed, %d failed", res.Succeeded, res.Failed)
		}
	case batch.StateAbortedOnFailure:
		ui.PrintError("batch aborted: %d installed, %d failed, remaining packages skipped", res.Succeeded, res.Failed)
	case batch.StateCancelledByUser:
		ui.PrintWarning("batch cancelled: %d installed, %d failed", res.Succeeded, res.Failed)
	}
}

func firstFailure(res batch.RunResult) batch.ItemResult {
	for _, item := range res.Results {
		if !item.Outcome.Success {
			return item
		}
	}
	return batch.ItemResult{}
}

// recordOutcome appends one history row for a concluded attempt. Losing a
// row is logged, never fatal.
func recordOutcome(ctx context.Context, log *zerolog.Logger, ledger core.Ledger, artifact core.PackageArtifact, outcome core.InstallOutcome) {
	entry := core.HistoryEntry{
		Timestamp: time.Now(),
		Path:      artifact.Path,
		Name:      artifact.Name(),
		Format:    artifact.Format,
		Success:   outcome.Success,
		Message:   outcome.Message,
	}
	if err := ledger.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("package", artifact.Path).Msg("failed to record history entry")
	}
}

// resolveAlgorithm picks the configured default when no flag was given
func resolveAlgorithm(cfg *config.Config, flag string) (core.ChecksumAlgorithm, error) {
	name := flag
	if name == "" {
		name = cfg.Verify.DefaultAlgorithm
	}
	if name == "" {
		return core.DefaultAlgorithm, nil
	}
	return core.ParseAlgorithm(name)
}

// retryingInstaller wraps the backend registry with the configured install
// retry profile. Only transient kinds are retried; a definitive failure
// comes back after a single attempt.
type retryingInstaller struct {
	registry *backends.Registry
	policy   retry.Policy
	log      *zerolog.Logger
}

func newRetryingInstaller(cfg *config.Config, log *zerolog.Logger) *retryingInstaller {
	policy := retry.FromProfile(cfg.Retry.Install)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		ui.PrintWarning("attempt %d failed: %v", attempt, err)
		ui.PrintInfo("retrying in %s", delay)
	}

	return &retryingInstaller{
		registry: backends.NewRegistry(cfg, log),
		policy:   policy,
		log:      log,
	}
}

// Install satisfies batch.Installer. The outcome of the last attempt is
// always returned; the retry loop only decides how many attempts happen.
func (r *retryingInstaller) Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome {
	var outcome core.InstallOutcome

	err := r.policy.Execute(ctx, func(ctx context.Context) error {
		outcome = r.registry.Install(ctx, artifact, opts)
		if !outcome.Success {
			return core.NewError(outcome.Kind, outcome.Message)
		}
		return nil
	})
	if err != nil {
		r.log.Debug().Err(err).Str("package", artifact.Path).Msg("installation failed")
	}

	return outcome
}
