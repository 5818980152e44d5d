package kernel

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Compare orders two version strings with numeric-aware dotted semantics,
// so "10" sorts above "9" and "5.10.0-2" above "5.10.0-1". Underscores are
// treated like hyphens since file versions carry an underscore revision tag.
// Strings that do not parse as versions at all fall back to plain string
// order, which keeps non-numeric tags like "bootmenu" stable.
func Compare(a, b string) int {
	va, errA := goversion.NewVersion(normalize(a))
	vb, errB := goversion.NewVersion(normalize(b))
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

func normalize(v string) string {
	return strings.ReplaceAll(v, "_", "-")
}
