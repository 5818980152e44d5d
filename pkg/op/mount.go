package op

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/bootforge/bootforge/internal/utils"
	"github.com/deniswernert/go-fstab"
	"github.com/moby/sys/mountinfo"
	"github.com/rs/zerolog"
)

// MountError carries the combined output and exit status of a failed
// mount(8) invocation.
type MountError struct {
	Output string
	Status int
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount exited with status %d", e.Status)
}

// BootMount is the scoped acquisition of the boot partition. It mounts the
// configured mount point only when nothing has mounted it yet, and Release
// unmounts only what Acquire mounted, exactly once, on every exit path.
type BootMount struct {
	MountPoint string
	Logger     zerolog.Logger

	mounted     bool
	releaseOnce sync.Once
}

// Acquire mounts the boot partition if a mount point is configured and not
// already mounted. mount(8) resolves the device from fstab itself; the
// fstab entry is looked up here only to surface what is about to happen.
// The mount is retried a few times to ride out device settling.
func (m *BootMount) Acquire() error {
	if m.MountPoint == "" {
		return nil
	}
	l := m.Logger.With().Str("where", m.MountPoint).Logger()

	mounted, err := mountinfo.Mounted(m.MountPoint)
	if err != nil {
		l.Warn().Err(err).Msg("Checking mount status")
	}
	if mounted {
		l.Info().Msg("Boot partition already mounted, leaving it alone")
		return nil
	}

	if entry := m.fstabEntry(); entry != nil {
		l.Info().Str("what", entry.Spec).Str("type", entry.VfsType).Msg("Mounting boot partition")
	} else {
		l.Info().Msg("Mounting boot partition")
	}

	err = retry.Do(
		func() error {
			out, err := exec.Command("mount", m.MountPoint).CombinedOutput()
			if err != nil {
				return &MountError{Output: string(out), Status: utils.ExitStatus(err)}
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}

	m.mounted = true
	return nil
}

// Release unmounts the boot partition if Acquire mounted it. Safe to call
// any number of times, from the normal exit path and from a signal handler
// at once; only the first call acts. Unmount failure is logged only: it
// happens during teardown, after the run's outcome is already decided.
func (m *BootMount) Release() {
	m.releaseOnce.Do(func() {
		if !m.mounted {
			return
		}
		out, err := exec.Command("umount", m.MountPoint).CombinedOutput()
		if err != nil {
			m.Logger.Warn().Err(err).Str("where", m.MountPoint).Str("output", string(out)).Msg("Unmounting boot partition")
			return
		}
		m.Logger.Info().Str("where", m.MountPoint).Msg("Unmounted boot partition")
	})
}

func (m *BootMount) fstabEntry() *fstab.Mount {
	mounts, err := fstab.ParseSystem()
	if err != nil {
		m.Logger.Debug().Err(err).Msg("Parsing fstab")
		return nil
	}
	for _, entry := range mounts {
		if entry.File == m.MountPoint {
			return entry
		}
	}
	m.Logger.Debug().Str("where", m.MountPoint).Msg("No fstab entry for boot mount point")
	return nil
}
