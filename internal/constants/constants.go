package constants

import "errors"

var ErrKernelNotFound = errors.New("no kernel image found")
var ErrUnparsableName = errors.New("cannot derive prefix from kernel file name")
var ErrMissingStub = errors.New("EFI stub not found")

const (
	OpMountBoot    = "mount-boot"
	OpLocateKernel = "locate-kernel"
	OpBuildUnified = "build-unified"
	OpBuildSplit   = "build-split"
	OpPlaceUnified = "place-unified"
	OpPlaceSplit   = "place-split"
	OpGenerateMenu = "generate-menu"

	// Singleton-mode file tags. The current pair is always <prefix>-bootmenu,
	// the previous one <prefix>-backup.
	CurrentTag = "bootmenu"
	BackupTag  = "backup"

	EFISuffix         = ".EFI"
	InitramfsFmt      = "initramfs-%s.img"
	KernelSeparator   = "-"
	CurrentKernelWord = "current"

	// Appended to the display version before it is used in file names.
	// syslinux truncates a raw trailing ".0" from label words, so versions
	// always carry a disambiguator.
	VersionSuffix = "_1"

	// Substituted in Global.Version with the resolved kernel version.
	VersionCurrentToken = "%current%"

	DefaultConfigFile  = "/etc/bootforge/config.yaml"
	DefaultConfDir     = "/etc/bootforge/dracut.conf.d"
	DefaultBootDir     = "/boot"
	DefaultBuildCmd    = "dracut"
	DefaultMaxCopies   = 3
	DefaultCommandLine = "ro quiet loglevel=0"

	OSReleasePath = "/etc/os-release"
)

// SearchPrefixes is the probe order for an explicitly requested kernel
// version.
func SearchPrefixes() []string {
	return []string{"vmlinuz", "linux", "vmlinux", "kernel"}
}

// LatestPrefixes is the class priority when hunting for the newest kernel.
// The first class that yields any match wins, regardless of versions in
// lower-priority classes.
func LatestPrefixes() []string {
	return []string{"vmlinux", "vmlinuz", "linux", "kernel"}
}
