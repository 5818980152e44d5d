package dag

import (
	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterGenerate registers the image-refresh pipeline as a strictly
// linear chain: mount the boot partition, pick a kernel, build whatever
// kinds are enabled into scratch space, place them into their managed
// directories, and regenerate the menu from the survivors. Strong deps mean
// a failed step skips everything after it, so a broken build can neither
// touch a managed directory nor get advertised by a fresh menu.
func RegisterGenerate(s *state.State, g *herd.Graph) error {
	var err error

	if err = s.LogIfErrorAndReturn(s.MountBootDagStep(g), "mount boot"); err != nil {
		return err
	}
	last := cnst.OpMountBoot

	if err = s.LogIfErrorAndReturn(s.LocateKernelDagStep(g, herd.WithDeps(last)), "locate kernel"); err != nil {
		return err
	}
	last = cnst.OpLocateKernel

	if s.Config.EFI.Enabled {
		if err = s.LogIfErrorAndReturn(s.BuildUnifiedDagStep(g, herd.WithDeps(last)), "build unified"); err != nil {
			return err
		}
		last = cnst.OpBuildUnified
	}

	if s.Config.Components.Enabled {
		if err = s.LogIfErrorAndReturn(s.BuildSplitDagStep(g, herd.WithDeps(last)), "build split"); err != nil {
			return err
		}
		last = cnst.OpBuildSplit
	}

	if s.Config.EFI.Enabled {
		if err = s.LogIfErrorAndReturn(s.PlaceUnifiedDagStep(g, herd.WithDeps(last)), "place unified"); err != nil {
			return err
		}
		last = cnst.OpPlaceUnified
	}

	if s.Config.Components.Enabled {
		if err = s.LogIfErrorAndReturn(s.PlaceSplitDagStep(g, herd.WithDeps(last)), "place split"); err != nil {
			return err
		}
		last = cnst.OpPlaceSplit
	}

	if s.Config.Syslinux.CreateConfig {
		if err = s.LogIfErrorAndReturn(s.GenerateMenuDagStep(g, herd.WithDeps(last)), "generate menu"); err != nil {
			return err
		}
	}

	return nil
}
