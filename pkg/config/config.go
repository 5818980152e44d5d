package config

import (
	"fmt"
	"os"
	"strings"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Section and key names follow the
// /etc/bootforge/config.yaml layout shipped with the package.
type Config struct {
	Global     Global   `yaml:"Global"`
	Components Images   `yaml:"Components"`
	EFI        EFI      `yaml:"EFI"`
	Kernel     Kernel   `yaml:"Kernel"`
	Syslinux   Syslinux `yaml:"Syslinux"`
}

type Global struct {
	// ManageImages gates the whole tool. False means a clean no-op exit.
	ManageImages bool `yaml:"ManageImages"`
	// BootMountPoint, when set, is mounted before the run and unmounted
	// after it, unless something else already mounted it.
	BootMountPoint string `yaml:"BootMountPoint"`
	// DracutConfDir is handed to the builder via --confdir.
	DracutConfDir string `yaml:"DracutConfDir"`
	// BuildCommand overrides the builder binary, mostly for tests.
	BuildCommand string `yaml:"BuildCommand"`
	// Version is the display version embedded in file names and menu
	// labels. %current% expands to the resolved kernel version. Empty
	// defaults to the kernel version itself.
	Version string `yaml:"Version"`
}

// Images configures one artifact kind (split kernel+initramfs pairs).
type Images struct {
	Enabled   bool   `yaml:"Enabled"`
	ImageDir  string `yaml:"ImageDir"`
	Versioned bool   `yaml:"Versioned"`
	MaxCopies int    `yaml:"MaxCopies"`
}

// EFI configures the unified EFI executable kind.
type EFI struct {
	Enabled   bool   `yaml:"Enabled"`
	ImageDir  string `yaml:"ImageDir"`
	Versioned bool   `yaml:"Versioned"`
	MaxCopies int    `yaml:"MaxCopies"`
	// Stub is the UEFI stub loader the builder wraps the kernel with.
	Stub string `yaml:"Stub"`
}

type Kernel struct {
	CommandLine string `yaml:"CommandLine"`
	// Path points at an exact kernel image and skips the boot dir search.
	Path string `yaml:"Path"`
	// Version selects a kernel by version. The word "current" resolves to
	// the running kernel. Empty means newest available.
	Version string `yaml:"Version"`
	// Prefix overrides the kernel file prefix used for searching and for
	// naming the managed copies.
	Prefix string `yaml:"Prefix"`
}

type Syslinux struct {
	CreateConfig bool   `yaml:"CreateConfig"`
	Config       string `yaml:"Config"`
}

// Load reads and validates the configuration file. A missing file is
// reported as-is so the caller can distinguish it from a broken one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Global.DracutConfDir == "" {
		c.Global.DracutConfDir = cnst.DefaultConfDir
	}
	if c.Global.BuildCommand == "" {
		c.Global.BuildCommand = cnst.DefaultBuildCmd
	}
	if c.Kernel.CommandLine == "" {
		c.Kernel.CommandLine = cnst.DefaultCommandLine
	}
	if c.Components.MaxCopies <= 0 {
		c.Components.MaxCopies = cnst.DefaultMaxCopies
	}
	if c.EFI.MaxCopies <= 0 {
		c.EFI.MaxCopies = cnst.DefaultMaxCopies
	}
}

// DisplayVersion computes the version string used in artifact file names for
// the given kernel version. The fixed suffix keeps syslinux from truncating
// versions ending in ".0".
func (c *Config) DisplayVersion(kernelVersion string) string {
	v := c.Global.Version
	if v == "" {
		v = kernelVersion
	}
	v = strings.ReplaceAll(v, cnst.VersionCurrentToken, kernelVersion)
	return v + cnst.VersionSuffix
}
