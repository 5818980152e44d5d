package managed

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/pkg/kernel"
	"github.com/rs/zerolog"
)

// Kind separates the two artifact families that may share a directory.
// They are listed and pruned independently of each other.
type Kind int

const (
	KindSplit Kind = iota
	KindUnified
)

// Entry is one artifact already present in a managed directory, discovered
// by listing and file-name parsing. The directory itself is the only index.
type Entry struct {
	Name    string
	Version string
	Kind    Kind
	// Kernel and Initramfs are set for split entries. The initramfs
	// companion is derived by convention and may be missing on disk.
	Kernel    string
	Initramfs string
	// EFI is set for unified entries.
	EFI string
}

// Directory manages the artifacts for one prefix in one directory. All
// file-name conventions are centralized here.
type Directory struct {
	Path   string
	Prefix string
	Logger zerolog.Logger
}

func New(path, prefix string, logger zerolog.Logger) *Directory {
	return &Directory{
		Path:   path,
		Prefix: prefix,
		Logger: logger.With().Str("dir", path).Str("prefix", prefix).Logger(),
	}
}

// List returns the entries of one kind sorted oldest to newest by version
// comparison. A directory that does not exist yet lists as empty. The
// prefix must be followed by the separator (or, for singleton unified
// images, by the EFI suffix directly): a longer prefix sharing the
// configured one as a leading substring is never matched.
func (d *Directory) List(kind Kind) ([]Entry, error) {
	dirents, err := os.ReadDir(d.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.Path, err)
	}

	var entries []Entry
	for _, dirent := range dirents {
		if dirent.IsDir() {
			continue
		}
		if e, ok := d.parseName(dirent.Name(), kind); ok {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return kernel.Compare(entries[i].Version, entries[j].Version) < 0
	})
	return entries, nil
}

func (d *Directory) parseName(name string, kind Kind) (Entry, bool) {
	isEFI := strings.HasSuffix(name, cnst.EFISuffix)

	switch kind {
	case KindSplit:
		if isEFI {
			return Entry{}, false
		}
		if !strings.HasPrefix(name, d.Prefix+cnst.KernelSeparator) {
			return Entry{}, false
		}
		version := strings.TrimPrefix(name, d.Prefix+cnst.KernelSeparator)
		return Entry{
			Name:      name,
			Version:   version,
			Kind:      KindSplit,
			Kernel:    filepath.Join(d.Path, name),
			Initramfs: filepath.Join(d.Path, fmt.Sprintf(cnst.InitramfsFmt, version)),
		}, true
	case KindUnified:
		if !isEFI {
			return Entry{}, false
		}
		stem := strings.TrimSuffix(name, cnst.EFISuffix)
		var version string
		switch {
		case stem == d.Prefix:
			// Singleton current image, <prefix>.EFI.
		case strings.HasPrefix(stem, d.Prefix+cnst.KernelSeparator):
			version = strings.TrimPrefix(stem, d.Prefix+cnst.KernelSeparator)
		default:
			return Entry{}, false
		}
		return Entry{
			Name:    name,
			Version: version,
			Kind:    KindUnified,
			EFI:     filepath.Join(d.Path, name),
		}, true
	}
	return Entry{}, false
}

// Names for the versioned layout.

func (d *Directory) versionedKernel(version string) string {
	return d.Prefix + cnst.KernelSeparator + version
}

func (d *Directory) versionedEFI(version string) string {
	return d.Prefix + cnst.KernelSeparator + version + cnst.EFISuffix
}

func initramfsName(version string) string {
	return fmt.Sprintf(cnst.InitramfsFmt, version)
}
