package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/internal/utils"
	"github.com/bootforge/bootforge/internal/version"
	"github.com/bootforge/bootforge/pkg/builder"
	"github.com/bootforge/bootforge/pkg/config"
	"github.com/bootforge/bootforge/pkg/dag"
	"github.com/bootforge/bootforge/pkg/kernel"
	"github.com/bootforge/bootforge/pkg/op"
	"github.com/bootforge/bootforge/pkg/state"
	"github.com/spectrocloud-labs/herd"
	"github.com/urfave/cli/v2"
)

// Build and rotate boot-menu kernel/initramfs images.
func main() {
	app := cli.NewApp()
	app.Name = "bootforge"
	app.Usage = "build bootable kernel/initramfs images and keep a bounded history of them"
	app.Version = version.GetVersion()
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Value:   cnst.DefaultConfigFile,
			EnvVars: []string{"BOOTFORGE_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "kernel",
			Usage: "explicit kernel image to build from",
		},
		&cli.StringFlag{
			Name:  "kver",
			Usage: "kernel version to build from, or 'current' for the running one",
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "kernel file prefix override",
		},
		&cli.StringFlag{
			Name:  "cmdline",
			Usage: "kernel command line override",
		},
		&cli.StringFlag{
			Name:  "confd",
			Usage: "builder configuration directory override",
		},
		&cli.StringFlag{
			Name:  "image-version",
			Usage: "display version embedded in image names",
		},
		&cli.StringFlag{
			Name:  "boot-dir",
			Value: cnst.DefaultBootDir,
			Usage: "directory searched for kernel images",
		},
		&cli.BoolFlag{
			Name:  "no-menu",
			Usage: "skip boot menu generation",
		},
		&cli.BoolFlag{
			Name:    "debug",
			EnvVars: []string{"BOOTFORGE_DEBUG"},
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the run plan and exit",
		},
	}
	app.Action = generate
	app.Commands = []*cli.Command{
		{
			Name:  "version",
			Usage: "version",
			Action: func(c *cli.Context) error {
				v := version.Get()
				utils.SetLogger(false)
				utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("Bootforge")
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		// exitStatus prints any captured external-command output first,
		// so the failure line below is the last thing operators see.
		status := exitStatus(err)
		fmt.Println(err)
		os.Exit(status)
	}
}

func generate(c *cli.Context) error {
	utils.SetLogger(c.Bool("debug"))

	v := version.Get()
	utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("Bootforge")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyOverrides(cfg, c)

	if !cfg.Global.ManageImages {
		utils.Log.Info().Msg("Image management disabled in configuration, nothing to do")
		return nil
	}
	if !cfg.Components.Enabled && !cfg.EFI.Enabled {
		utils.Log.Info().Msg("No image kind enabled, nothing to do")
		return nil
	}

	bldr, err := builder.New(cfg.Global.BuildCommand, cfg.Global.DracutConfDir, utils.Log)
	if err != nil {
		return err
	}

	s := &state.State{
		Logger:  utils.Log,
		Config:  cfg,
		BootDir: c.String("boot-dir"),
		Request: kernel.Request{
			ExplicitPath: cfg.Kernel.Path,
			Version:      cfg.Kernel.Version,
			Prefix:       cfg.Kernel.Prefix,
		},
		Boot:    &op.BootMount{MountPoint: cfg.Global.BootMountPoint, Logger: utils.Log},
		Builder: bldr,
	}

	g := herd.DAG(herd.EnableInit)
	if err := dag.RegisterGenerate(s, g); err != nil {
		bldr.Cleanup()
		return err
	}

	utils.Log.Info().Msg(s.WriteDAG(g))

	if c.Bool("dry-run") {
		bldr.Cleanup()
		return nil
	}

	return s.Run(context.Background(), g)
}

func applyOverrides(cfg *config.Config, c *cli.Context) {
	if c.String("kernel") != "" {
		cfg.Kernel.Path = c.String("kernel")
	}
	if c.String("kver") != "" {
		cfg.Kernel.Version = c.String("kver")
	}
	if c.String("prefix") != "" {
		cfg.Kernel.Prefix = c.String("prefix")
	}
	if c.String("cmdline") != "" {
		cfg.Kernel.CommandLine = c.String("cmdline")
	}
	if c.String("confd") != "" {
		cfg.Global.DracutConfDir = c.String("confd")
	}
	if c.String("image-version") != "" {
		cfg.Global.Version = c.String("image-version")
	}
	if c.Bool("no-menu") {
		cfg.Syslinux.CreateConfig = false
	}
}

// exitStatus maps a run failure to the process exit code, propagating the
// failing external command's status where there is one. The captured
// output is printed verbatim first so the tool's own diagnostics are never
// the only trace.
func exitStatus(err error) int {
	var buildErr *builder.BuildError
	if errors.As(err, &buildErr) {
		fmt.Fprint(os.Stderr, buildErr.Output)
		if buildErr.Status > 0 {
			return buildErr.Status
		}
		return 1
	}
	var mountErr *op.MountError
	if errors.As(err, &mountErr) {
		fmt.Fprint(os.Stderr, mountErr.Output)
		if mountErr.Status > 0 {
			return mountErr.Status
		}
		return 1
	}
	return 1
}
