package menu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cnst "github.com/bootforge/bootforge/internal/constants"
	"github.com/bootforge/bootforge/pkg/managed"
	"github.com/rs/zerolog"
)

// Entry is one stanza of the generated boot menu.
type Entry struct {
	Label     string
	MenuLabel string
	Kernel    string
	Initrd    string
	Append    string
}

// Generator renders a syslinux-style menu from the split entries of a
// managed directory. Unified EFI images are booted directly by the
// firmware and never appear in the text menu.
type Generator struct {
	Dir *managed.Directory
	// BootMountPoint is stripped from artifact paths: the bootloader
	// resolves them from its own partition root, not from the OS root.
	BootMountPoint string
	CommandLine    string
	DistroName     string
	Logger         zerolog.Logger
}

// Entries lists the menu entries, newest version first. The first entry is
// the default selection.
func (g *Generator) Entries() ([]Entry, error) {
	listed, err := g.Dir.List(managed.KindSplit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(listed))
	for i := len(listed) - 1; i >= 0; i-- {
		e := listed[i]
		if _, err := os.Stat(e.Initramfs); err != nil {
			g.Logger.Warn().Str("what", e.Initramfs).Msg("Menu entry has no initramfs companion")
		}
		entries = append(entries, Entry{
			Label:     g.Dir.Prefix + cnst.KernelSeparator + e.Version,
			MenuLabel: fmt.Sprintf("%s %s", g.DistroName, e.Version),
			Kernel:    g.bootRelative(e.Kernel),
			Initrd:    g.bootRelative(e.Initramfs),
			Append:    g.CommandLine,
		})
	}
	return entries, nil
}

// Render produces the full menu file content. The output is a complete
// replacement for whatever is at the destination, never a partial edit.
func (g *Generator) Render(entries []Entry) string {
	var b strings.Builder

	b.WriteString("UI menu.c32\n")
	b.WriteString("PROMPT 0\n\n")
	fmt.Fprintf(&b, "MENU TITLE %s\n", g.DistroName)
	b.WriteString("TIMEOUT 50\n")

	if len(entries) > 0 {
		fmt.Fprintf(&b, "\nDEFAULT %s\n", entries[0].Label)
	}

	for _, e := range entries {
		fmt.Fprintf(&b, "\nLABEL %s\n", e.Label)
		fmt.Fprintf(&b, "  MENU LABEL %s\n", e.MenuLabel)
		fmt.Fprintf(&b, "  KERNEL %s\n", e.Kernel)
		fmt.Fprintf(&b, "  INITRD %s\n", e.Initrd)
		fmt.Fprintf(&b, "  APPEND %s\n", e.Append)
	}
	return b.String()
}

// Write renders the menu and replaces the destination file in one rename,
// so a concurrent reader sees either the old menu or the new one.
func (g *Generator) Write(path string) error {
	entries, err := g.Entries()
	if err != nil {
		return err
	}
	content := g.Render(entries)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating menu dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing menu: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing menu: %w", err)
	}

	g.Logger.Info().Str("what", path).Int("entries", len(entries)).Msg("Wrote boot menu")
	return nil
}

func (g *Generator) bootRelative(path string) string {
	if g.BootMountPoint == "" {
		return path
	}
	mount := strings.TrimSuffix(g.BootMountPoint, "/")
	rel := strings.TrimPrefix(path, mount)
	if rel == path {
		return path
	}
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}
