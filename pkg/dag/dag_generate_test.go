package dag_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/pkg/builder"
	"github.com/bootforge/bootforge/pkg/config"
	"github.com/bootforge/bootforge/pkg/dag"
	"github.com/bootforge/bootforge/pkg/kernel"
	"github.com/bootforge/bootforge/pkg/op"
	"github.com/bootforge/bootforge/pkg/state"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"github.com/spectrocloud-labs/herd"
)

func opNames(g *herd.Graph) []string {
	var names []string
	for _, layer := range g.Analyze() {
		for _, entry := range layer {
			names = append(names, entry.Name)
		}
	}
	return names
}

var _ = Describe("RegisterGenerate", func() {
	newState := func(cfg *config.Config) *state.State {
		return &state.State{
			Logger:  zerolog.Nop(),
			Config:  cfg,
			BootDir: "/boot",
			Boot:    &op.BootMount{Logger: zerolog.Nop()},
			Builder: &builder.Builder{Logger: zerolog.Nop()},
		}
	}

	It("chains every step strictly in order with all kinds enabled", func() {
		cfg := &config.Config{
			Global:     config.Global{ManageImages: true},
			Components: config.Images{Enabled: true},
			EFI:        config.EFI{Enabled: true},
			Syslinux:   config.Syslinux{CreateConfig: true},
		}
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(newState(cfg), g)).To(Succeed())

		names := opNames(g)
		Expect(names).To(HaveLen(8))
		Expect(names[1:]).To(Equal([]string{
			cnst.OpMountBoot,
			cnst.OpLocateKernel,
			cnst.OpBuildUnified,
			cnst.OpBuildSplit,
			cnst.OpPlaceUnified,
			cnst.OpPlaceSplit,
			cnst.OpGenerateMenu,
		}))
	})

	It("drops the unified steps when only split images are enabled", func() {
		cfg := &config.Config{
			Global:     config.Global{ManageImages: true},
			Components: config.Images{Enabled: true},
			Syslinux:   config.Syslinux{CreateConfig: true},
		}
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(newState(cfg), g)).To(Succeed())

		Expect(opNames(g)[1:]).To(Equal([]string{
			cnst.OpMountBoot,
			cnst.OpLocateKernel,
			cnst.OpBuildSplit,
			cnst.OpPlaceSplit,
			cnst.OpGenerateMenu,
		}))
	})

	It("skips menu generation when disabled", func() {
		cfg := &config.Config{
			Global: config.Global{ManageImages: true},
			EFI:    config.EFI{Enabled: true},
		}
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(newState(cfg), g)).To(Succeed())

		names := opNames(g)
		Expect(names).ToNot(ContainElement(cnst.OpGenerateMenu))
		Expect(names).ToNot(ContainElement(cnst.OpBuildSplit))
		Expect(names[1:]).To(Equal([]string{
			cnst.OpMountBoot,
			cnst.OpLocateKernel,
			cnst.OpBuildUnified,
			cnst.OpPlaceUnified,
		}))
	})
})

var _ = Describe("generate pipeline", func() {
	var tmpDir, bootDir, imageDir, menuPath string

	fakeBuilder := func(body string) string {
		script := filepath.Join(tmpDir, "fakedracut")
		ExpectWithOffset(1, os.WriteFile(script, []byte("#!/bin/sh\n"+body), 0755)).To(Succeed())
		return script
	}

	newState := func(buildCmd string) *state.State {
		cfg := &config.Config{
			Global: config.Global{
				ManageImages:  true,
				BuildCommand:  buildCmd,
				DracutConfDir: tmpDir,
			},
			Components: config.Images{
				Enabled:   true,
				ImageDir:  imageDir,
				Versioned: true,
				MaxCopies: 2,
			},
			Kernel:   config.Kernel{CommandLine: "root=LABEL=root ro"},
			Syslinux: config.Syslinux{CreateConfig: true, Config: menuPath},
		}
		bldr, err := builder.New(buildCmd, tmpDir, zerolog.Nop())
		ExpectWithOffset(1, err).ToNot(HaveOccurred())
		return &state.State{
			Logger:  zerolog.Nop(),
			Config:  cfg,
			BootDir: bootDir,
			Request: kernel.Request{},
			Boot:    &op.BootMount{Logger: zerolog.Nop()},
			Builder: bldr,
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		bootDir = filepath.Join(tmpDir, "boot")
		imageDir = filepath.Join(bootDir, "bootforge")
		menuPath = filepath.Join(bootDir, "syslinux", "syslinux.cfg")
		Expect(os.MkdirAll(imageDir, 0755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(bootDir, "vmlinuz-5.10.0"), []byte("kernel-bits"), 0644)).To(Succeed())
	})

	It("builds, places and advertises a new kernel end to end", func() {
		s := newState(fakeBuilder("for a; do out=\"$a\"; done\necho built > \"$out\"\n"))
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(s, g)).To(Succeed())

		Expect(s.Run(context.Background(), g)).To(Succeed())

		data, err := os.ReadFile(filepath.Join(imageDir, "vmlinuz-5.10.0_1"))
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(Equal("kernel-bits"))
		Expect(filepath.Join(imageDir, "initramfs-5.10.0_1.img")).To(BeARegularFile())

		menu, err := os.ReadFile(menuPath)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(menu)).To(ContainSubstring("DEFAULT vmlinuz-5.10.0_1"))
		Expect(string(menu)).To(ContainSubstring("APPEND root=LABEL=root ro"))
	})

	It("leaves the directory and menu untouched when the build fails", func() {
		Expect(os.WriteFile(filepath.Join(imageDir, "vmlinuz-1.0_1"), []byte("survivor"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(imageDir, "initramfs-1.0_1.img"), []byte("survivor"), 0644)).To(Succeed())
		Expect(os.MkdirAll(filepath.Dir(menuPath), 0755)).To(Succeed())
		Expect(os.WriteFile(menuPath, []byte("previous menu"), 0644)).To(Succeed())

		s := newState(fakeBuilder("echo no modules >&2\nexit 9\n"))
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(s, g)).To(Succeed())

		err := s.Run(context.Background(), g)
		Expect(err).To(HaveOccurred())
		var buildErr *builder.BuildError
		Expect(errors.As(err, &buildErr)).To(BeTrue())
		Expect(buildErr.Status).To(Equal(9))
		Expect(buildErr.Output).To(ContainSubstring("no modules"))

		dirents, readErr := os.ReadDir(imageDir)
		Expect(readErr).ToNot(HaveOccurred())
		Expect(dirents).To(HaveLen(2))

		menu, readErr := os.ReadFile(menuPath)
		Expect(readErr).ToNot(HaveOccurred())
		Expect(string(menu)).To(Equal("previous menu"))
	})

	It("fails cleanly when no kernel can be located", func() {
		Expect(os.Remove(filepath.Join(bootDir, "vmlinuz-5.10.0"))).To(Succeed())

		s := newState(fakeBuilder("exit 0\n"))
		g := herd.DAG(herd.EnableInit)
		Expect(dag.RegisterGenerate(s, g)).To(Succeed())

		err := s.Run(context.Background(), g)
		Expect(errors.Is(err, cnst.ErrKernelNotFound)).To(BeTrue())

		_, statErr := os.Stat(menuPath)
		Expect(os.IsNotExist(statErr)).To(BeTrue())
	})
})
