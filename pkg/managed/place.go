package managed

import (
	"fmt"
	"os"
	"path/filepath"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/pkg/builder"
	"github.com/hashicorp/go-multierror"
)

// CopyError is a failed placement of a new artifact. It is always fatal:
// eviction of old entries never runs after one, so the directory keeps at
// least everything it had before the run.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("placing %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// PlaceVersionedSplit copies a split artifact in under its versioned names
// and then evicts the oldest surplus entries until at most maxCopies
// remain. The listing is taken once, before anything is written; the entry
// matching the target name is excluded from the surplus count so re-running
// the same version never counts itself. Timestamps of the copied files are
// preserved to keep mtime-based inspection consistent with version order.
func (d *Directory) PlaceVersionedSplit(art *builder.SplitArtifact, version string, maxCopies int) error {
	kernelName := d.versionedKernel(version)

	existing, err := d.List(KindSplit)
	if err != nil {
		return err
	}
	existing = excludeName(existing, kernelName)

	if err := d.copyIn(art.Kernel, kernelName, true); err != nil {
		return err
	}
	if err := d.copyIn(art.Initramfs, initramfsName(version), true); err != nil {
		return err
	}
	d.Logger.Info().Str("version", version).Msg("Placed kernel and initramfs")

	d.evictSurplus(existing, maxCopies)
	return nil
}

// PlaceVersionedUnified is PlaceVersionedSplit for unified EFI executables.
// The two kinds are pruned independently even when they share a directory.
func (d *Directory) PlaceVersionedUnified(art *builder.UnifiedArtifact, version string, maxCopies int) error {
	name := d.versionedEFI(version)

	existing, err := d.List(KindUnified)
	if err != nil {
		return err
	}
	existing = excludeName(existing, name)

	if err := d.copyIn(art.EFI, name, true); err != nil {
		return err
	}
	d.Logger.Info().Str("version", version).Msg("Placed unified EFI image")

	d.evictSurplus(existing, maxCopies)
	return nil
}

// PlaceSingletonSplit keeps exactly one current pair plus at most one
// backup. The current pair is copied aside first; a failed backup is logged
// and the refresh proceeds, as refusing to update the boot image over a
// stale backup is the worse trade. The new current files get fresh mtimes.
func (d *Directory) PlaceSingletonSplit(art *builder.SplitArtifact) error {
	d.backup(d.Prefix+cnst.KernelSeparator+cnst.CurrentTag, d.Prefix+cnst.KernelSeparator+cnst.BackupTag)
	d.backup(initramfsName(cnst.CurrentTag), initramfsName(cnst.BackupTag))

	if err := d.copyIn(art.Kernel, d.Prefix+cnst.KernelSeparator+cnst.CurrentTag, false); err != nil {
		return err
	}
	if err := d.copyIn(art.Initramfs, initramfsName(cnst.CurrentTag), false); err != nil {
		return err
	}
	d.Logger.Info().Msg("Placed current kernel and initramfs")
	return nil
}

// PlaceSingletonUnified is PlaceSingletonSplit for unified EFI executables.
func (d *Directory) PlaceSingletonUnified(art *builder.UnifiedArtifact) error {
	d.backup(d.Prefix+cnst.EFISuffix, d.Prefix+cnst.KernelSeparator+cnst.BackupTag+cnst.EFISuffix)

	if err := d.copyIn(art.EFI, d.Prefix+cnst.EFISuffix, false); err != nil {
		return err
	}
	d.Logger.Info().Msg("Placed current unified EFI image")
	return nil
}

// backup copies the current file aside, preserving timestamps. Only files
// that exist are backed up and failure never aborts the run.
func (d *Directory) backup(currentName, backupName string) {
	current := filepath.Join(d.Path, currentName)
	if _, err := os.Stat(current); err != nil {
		return
	}
	if err := d.copyIn(current, backupName, true); err != nil {
		d.Logger.Warn().Err(err).Str("what", currentName).Msg("Backing up current image failed, proceeding without")
		return
	}
	d.Logger.Info().Str("what", backupName).Msg("Backed up current image")
}

func (d *Directory) copyIn(src, dstName string, preserveTimes bool) error {
	dst := filepath.Join(d.Path, dstName)
	if err := copyFile(src, dst, preserveTimes); err != nil {
		return &CopyError{Path: dst, Err: err}
	}
	return nil
}

// evictSurplus removes the oldest entries until count+1 (the freshly placed
// entry) fits the bound. existing must already exclude the new entry, which
// therefore can never be evicted, even when it is the oldest by version.
// Eviction trouble is logged and tolerated; the next run prunes again.
func (d *Directory) evictSurplus(existing []Entry, maxCopies int) {
	surplus := len(existing) - (maxCopies - 1)
	for i := 0; i < surplus; i++ {
		d.evict(existing[i])
	}
}

func (d *Directory) evict(e Entry) {
	var errs error

	switch e.Kind {
	case KindSplit:
		if err := os.Remove(e.Kernel); err != nil {
			errs = multierror.Append(errs, err)
		}
		if err := os.Remove(e.Initramfs); err != nil {
			if os.IsNotExist(err) {
				d.Logger.Debug().Str("what", e.Initramfs).Msg("Evicted entry had no initramfs companion")
			} else {
				errs = multierror.Append(errs, err)
			}
		}
	case KindUnified:
		if err := os.Remove(e.EFI); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if errs != nil {
		d.Logger.Warn().Err(errs).Str("what", e.Name).Msg("Evicting old entry")
		return
	}
	d.Logger.Info().Str("what", e.Name).Str("version", e.Version).Msg("Evicted old entry")
}

func excludeName(entries []Entry, name string) []Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	return out
}
