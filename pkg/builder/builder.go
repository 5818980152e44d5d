package builder

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/internal/utils"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

// SplitArtifact is a freshly built kernel+initramfs pair. Both files live
// outside any managed directory until placement copies them in.
type SplitArtifact struct {
	Kernel    string
	Initramfs string
}

// UnifiedArtifact is a freshly built unified EFI executable.
type UnifiedArtifact struct {
	EFI string
}

// BuildError carries the combined output and exit status of a failed
// builder invocation. The output is surfaced verbatim so operators can
// diagnose the external tool without re-running it by hand.
type BuildError struct {
	Output string
	Status int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("builder exited with status %d", e.Status)
}

// Builder drives the external initramfs generator (dracut unless
// configured otherwise). Artifacts are produced in a per-run scratch
// directory and never directly in a managed one, so an interrupted build
// cannot corrupt what is already on disk.
type Builder struct {
	Command    string
	ConfDir    string
	ScratchDir string
	Logger     zerolog.Logger
}

// New creates a builder with a unique scratch directory under the system
// temp dir. The caller owns Cleanup.
func New(command, confDir string, logger zerolog.Logger) (*Builder, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("scratch dir id: %w", err)
	}
	scratch := filepath.Join(os.TempDir(), "bootforge-"+id.String())
	if err := os.MkdirAll(scratch, 0700); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	return &Builder{
		Command:    command,
		ConfDir:    confDir,
		ScratchDir: scratch,
		Logger:     logger.With().Str("builder", command).Logger(),
	}, nil
}

// Cleanup removes the scratch directory and everything built into it.
func (b *Builder) Cleanup() {
	if b.ScratchDir == "" {
		return
	}
	if err := os.RemoveAll(b.ScratchDir); err != nil {
		b.Logger.Warn().Err(err).Str("dir", b.ScratchDir).Msg("Removing scratch dir")
	}
}

// BuildSplit produces an initramfs for the given kernel version and pairs
// it with the source kernel image.
func (b *Builder) BuildSplit(kernelPath, version string) (*SplitArtifact, error) {
	out := filepath.Join(b.ScratchDir, fmt.Sprintf(cnst.InitramfsFmt, version))

	if err := b.run(version, out, nil); err != nil {
		return nil, err
	}
	return &SplitArtifact{Kernel: kernelPath, Initramfs: out}, nil
}

// BuildUnified produces a unified EFI executable wrapping kernel, initramfs
// and command line behind the given UEFI stub. The stub existence check
// runs first: the builder fails with a very unhelpful message otherwise.
func (b *Builder) BuildUnified(version, stub, cmdline string) (*UnifiedArtifact, error) {
	if stub == "" {
		return nil, cnst.ErrMissingStub
	}
	if _, err := os.Stat(stub); err != nil {
		return nil, fmt.Errorf("%w: %s", cnst.ErrMissingStub, stub)
	}

	out := filepath.Join(b.ScratchDir, "unified-"+version+cnst.EFISuffix)
	extra := []string{"--uefi", "--uefi-stub", stub, "--kernel-cmdline", cmdline}

	if err := b.run(version, out, extra); err != nil {
		return nil, err
	}
	return &UnifiedArtifact{EFI: out}, nil
}

func (b *Builder) run(version, out string, extra []string) error {
	args := []string{"--force", "--quiet", "--confdir", b.ConfDir, "--kver", version}
	args = append(args, extra...)
	args = append(args, out)

	b.Logger.Info().Str("kver", version).Str("out", out).Msg("Invoking builder")
	b.Logger.Debug().Strs("args", args).Send()

	output, err := exec.Command(b.Command, args...).CombinedOutput()
	if err != nil {
		return &BuildError{Output: string(output), Status: utils.ExitStatus(err)}
	}
	if _, err := os.Stat(out); err != nil {
		return &BuildError{Output: string(output), Status: 1}
	}
	return nil
}
