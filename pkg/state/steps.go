package state

import (
	"context"
	"errors"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/internal/utils"
	"github.com/bootforge/bootforge/pkg/kernel"
	"github.com/bootforge/bootforge/pkg/managed"
	"github.com/bootforge/bootforge/pkg/menu"
	"github.com/spectrocloud-labs/herd"
)

// MountBootDagStep adds the step that acquires the boot partition.
func (s *State) MountBootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpMountBoot, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			return s.Boot.Acquire()
		},
	))...)
}

// LocateKernelDagStep adds the step that resolves which kernel to build
// from and derives the display version used for file names.
func (s *State) LocateKernelDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpLocateKernel, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			ref, err := kernel.Locate(s.BootDir, s.Request)
			if err != nil {
				return err
			}
			s.kernel = ref
			s.displayVersion = s.Config.DisplayVersion(ref.Version)
			s.Logger.Info().Str("what", ref.Path).Str("kver", ref.Version).Str("version", s.displayVersion).Msg("Kernel chosen")
			return nil
		},
	))...)
}

// BuildUnifiedDagStep adds the step that builds the unified EFI executable
// into scratch space.
func (s *State) BuildUnifiedDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBuildUnified, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.kernel == nil {
				return errors.New("no kernel resolved")
			}
			art, err := s.Builder.BuildUnified(s.kernel.Version, s.Config.EFI.Stub, s.Config.Kernel.CommandLine)
			if err != nil {
				return err
			}
			s.unified = art
			s.Logger.Info().Str("what", art.EFI).Msg("Unified EFI image created")
			return nil
		},
	))...)
}

// BuildSplitDagStep adds the step that builds the initramfs half of the
// split pair into scratch space.
func (s *State) BuildSplitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBuildSplit, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.kernel == nil {
				return errors.New("no kernel resolved")
			}
			art, err := s.Builder.BuildSplit(s.kernel.Path, s.kernel.Version)
			if err != nil {
				return err
			}
			s.split = art
			s.Logger.Info().Str("what", art.Initramfs).Msg("Initramfs created")
			return nil
		},
	))...)
}

// PlaceUnifiedDagStep adds the step that merges the unified artifact into
// its managed directory under the configured retention policy.
func (s *State) PlaceUnifiedDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPlaceUnified, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.unified == nil {
				return errors.New("no unified artifact built")
			}
			dir := managed.New(s.Config.EFI.ImageDir, s.kernel.Prefix, s.Logger)
			if s.Config.EFI.Versioned {
				return dir.PlaceVersionedUnified(s.unified, s.displayVersion, s.Config.EFI.MaxCopies)
			}
			return dir.PlaceSingletonUnified(s.unified)
		},
	))...)
}

// PlaceSplitDagStep adds the step that merges the split pair into its
// managed directory under the configured retention policy.
func (s *State) PlaceSplitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPlaceSplit, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			if s.split == nil {
				return errors.New("no split artifact built")
			}
			dir := managed.New(s.Config.Components.ImageDir, s.kernel.Prefix, s.Logger)
			if s.Config.Components.Versioned {
				return dir.PlaceVersionedSplit(s.split, s.displayVersion, s.Config.Components.MaxCopies)
			}
			return dir.PlaceSingletonSplit(s.split)
		},
	))...)
}

// GenerateMenuDagStep adds the step that rescans the managed directory and
// replaces the boot menu with what actually survived pruning. It runs last;
// any earlier failure leaves the previous, consistent menu in place.
func (s *State) GenerateMenuDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpGenerateMenu, append(opts, herd.WithCallback(
		func(_ context.Context) error {
			prefix := s.Config.Kernel.Prefix
			if s.kernel != nil {
				prefix = s.kernel.Prefix
			}
			gen := &menu.Generator{
				Dir:            managed.New(s.Config.Components.ImageDir, prefix, s.Logger),
				BootMountPoint: s.Config.Global.BootMountPoint,
				CommandLine:    s.Config.Kernel.CommandLine,
				DistroName:     utils.DistroName(),
				Logger:         s.Logger,
			}
			return gen.Write(s.Config.Syslinux.Config)
		},
	))...)
}
