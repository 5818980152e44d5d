package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/internal/utils"
)

// Ref is a resolved kernel image. It is derived once per run and never
// mutated afterwards. Prefix and Version joined with the separator always
// name an existing file in the boot directory (or the explicit path given).
type Ref struct {
	Path    string
	Prefix  string
	Version string
}

// Request selects which kernel to resolve. Zero value means "newest kernel
// in the boot directory".
type Request struct {
	// ExplicitPath skips any search and uses the file as-is.
	ExplicitPath string
	// Version selects a kernel by version. The word "current" resolves to
	// the running kernel's release.
	Version string
	// Prefix restricts the search to one file prefix and overrides the
	// prefix parsed from an explicit path.
	Prefix string
}

// Locate resolves a kernel image in bootDir according to the request.
// Read-only, no side effects.
func Locate(bootDir string, req Request) (*Ref, error) {
	switch {
	case req.ExplicitPath != "":
		return fromExplicitPath(req)
	case req.Version != "":
		return fromVersion(bootDir, req)
	default:
		return latest(bootDir, req.Prefix)
	}
}

func fromExplicitPath(req Request) (*Ref, error) {
	if _, err := os.Stat(req.ExplicitPath); err != nil {
		return nil, fmt.Errorf("%w: %s", cnst.ErrKernelNotFound, req.ExplicitPath)
	}

	prefix, version := SplitImageName(filepath.Base(req.ExplicitPath))
	if req.Prefix != "" {
		prefix = req.Prefix
	}
	if prefix == "" {
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnparsableName, req.ExplicitPath)
	}
	if version == "" {
		resolved, err := resolveVersionWord(req.Version)
		if err != nil {
			return nil, err
		}
		version = resolved
	}
	if version == "" {
		return nil, fmt.Errorf("%w: no version in %s and none configured", cnst.ErrUnparsableName, req.ExplicitPath)
	}

	return &Ref{Path: req.ExplicitPath, Prefix: prefix, Version: version}, nil
}

func fromVersion(bootDir string, req Request) (*Ref, error) {
	version, err := resolveVersionWord(req.Version)
	if err != nil {
		return nil, err
	}

	prefixes := cnst.SearchPrefixes()
	if req.Prefix != "" {
		prefixes = []string{req.Prefix}
	}

	for _, prefix := range prefixes {
		path := filepath.Join(bootDir, prefix+cnst.KernelSeparator+version)
		if _, err := os.Stat(path); err == nil {
			return &Ref{Path: path, Prefix: prefix, Version: version}, nil
		}
	}
	return nil, fmt.Errorf("%w: version %s in %s", cnst.ErrKernelNotFound, version, bootDir)
}

// latest walks the prefix classes in priority order and picks the highest
// version within the first class that matches anything at all. A newer
// kernel under a lower-priority prefix never wins over an older one under a
// higher-priority prefix.
func latest(bootDir, prefixOverride string) (*Ref, error) {
	classes := cnst.LatestPrefixes()
	if prefixOverride != "" {
		classes = []string{prefixOverride}
	}

	for _, prefix := range classes {
		matches, err := filepath.Glob(filepath.Join(bootDir, prefix+"*"))
		if err != nil {
			return nil, fmt.Errorf("globbing %s in %s: %w", prefix, bootDir, err)
		}

		var best *Ref
		for _, match := range matches {
			base := filepath.Base(match)
			// Exact prefix boundary: "vmlinuz-..." must not be claimed by
			// the "vmlinux" class nor by a shorter configured prefix.
			if base != prefix && !strings.HasPrefix(base, prefix+cnst.KernelSeparator) {
				continue
			}
			_, version := SplitImageName(base)
			if best == nil || Compare(version, best.Version) > 0 {
				best = &Ref{Path: match, Prefix: prefix, Version: version}
			}
		}
		if best != nil {
			return best, nil
		}
	}
	return nil, fmt.Errorf("%w: nothing matching %v in %s", cnst.ErrKernelNotFound, classes, bootDir)
}

// SplitImageName splits a kernel file name into prefix and version. The
// prefix is everything before the first hyphen, the version everything
// after it. "vmlinuz" alone has an empty version.
func SplitImageName(name string) (prefix, version string) {
	prefix, version, _ = strings.Cut(name, cnst.KernelSeparator)
	return prefix, version
}

func resolveVersionWord(version string) (string, error) {
	if version != cnst.CurrentKernelWord {
		return version, nil
	}
	running, err := utils.RunningKernelVersion()
	if err != nil {
		return "", fmt.Errorf("resolving current kernel: %w", err)
	}
	return running, nil
}
