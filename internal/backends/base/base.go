package base

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/helpers"
)

// Backend contém dependências comuns a todos os instaladores de formato.
// Ele não implementa a interface Installer; é embedado pelos backends
// concretos.
type Backend struct {
	Fs     afero.Fs
	Runner helpers.CommandRunner
	Log    *zerolog.Logger
	Cfg    *config.Config
}

// New cria Backend com dependências padrão do sistema.
func New(cfg *config.Config, log *zerolog.Logger) *Backend {
	return NewWithDeps(cfg, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps cria Backend com dependências injetadas (para testes).
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Backend {
	return &Backend{
		Fs:     fs,
		Runner: runner,
		Log:    log,
		Cfg:    cfg,
	}
}

// InstallTimeout resolve o timeout efetivo de uma instalação.
func (b *Backend) InstallTimeout(opts core.InstallOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return b.Cfg.Install.Timeout()
}

// Progress emite uma atualização de progresso se houver sink configurado.
func (b *Backend) Progress(opts core.InstallOptions, percent int, step string) {
	if opts.Progress != nil {
		opts.Progress.InstallProgress(percent, step)
	}
}

// Elevated prefixa o comando com o helper de elevação configurado.
func (b *Backend) Elevated(argv ...string) []string {
	elevate := b.Cfg.Install.Elevate
	if elevate == "" {
		elevate = "pkexec"
	}
	return append([]string{elevate}, argv...)
}

// Execute roda um comando de instalação sob timeout e converte o resultado
// em InstallOutcome. Em caso de falha a mensagem vem do stderr; se vazio,
// do stdout; se ambos vazios, do próprio erro.
func (b *Backend) Execute(ctx context.Context, opts core.InstallOptions, backendName string, argv []string) core.InstallOutcome {
	timeout := b.InstallTimeout(opts)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.Log.Debug().
		Strs("argv", argv).
		Dur("timeout", timeout).
		Msg("executing install command")

	start := time.Now()
	stdout, stderr, err := b.Runner.RunCommandWithOutput(runCtx, argv[0], argv[1:]...)
	elapsed := time.Since(start)

	if err != nil {
		kind := b.classify(runCtx, err, stderr)
		message := failureMessage(stdout, stderr, err)
		if kind == core.KindInstallationTimeout {
			message = "installation timed out after " + timeout.String()
		}
		b.Log.Warn().
			Err(err).
			Str("backend", backendName).
			Str("kind", string(kind)).
			Msg("install command failed")
		return core.InstallOutcome{
			Success:  false,
			Message:  message,
			Kind:     kind,
			Backend:  backendName,
			Duration: elapsed,
		}
	}

	return core.InstallOutcome{
		Success:  true,
		Message:  strings.TrimSpace(stdout),
		Backend:  backendName,
		Duration: elapsed,
	}
}

// Unavailable produz o outcome para formato sem backend presente no host.
func (b *Backend) Unavailable(format core.Format) core.InstallOutcome {
	err := core.NewBackendNotFoundError(format)
	return core.InstallOutcome{
		Success: false,
		Message: err.Message,
		Kind:    core.KindBackendNotFound,
	}
}

// classify mapeia a falha do subprocess para um ErrorKind. Timeout e
// cancelamento têm precedência; exit 126/127 indica recusa do helper de
// elevação; padrões de dependência no stderr viram DependencyUnmet.
func (b *Backend) classify(runCtx context.Context, err error, stderr string) core.ErrorKind {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return core.KindInstallationTimeout
	}
	if errors.Is(runCtx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return core.KindInstallationCancelled
	}
	switch b.Runner.GetExitCode(err) {
	case 126, 127:
		return core.KindInsufficientPrivileges
	}
	if isDependencyFailure(stderr) {
		return core.KindDependencyUnmet
	}
	return core.KindUnknown
}

var dependencyMarkers = []string{
	"unmet dependencies",
	"dependency problems",
	"depends on",
	"nothing provides",
	"needed by",
	"requires",
}

func isDependencyFailure(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range dependencyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func failureMessage(stdout, stderr string, err error) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(stdout); msg != "" {
		return msg
	}
	return err.Error()
}
