// Package variant models scanner file variants (front, augmented front,
// backside), groups them by canonical stem, and selects the best front
// candidate per group.
//
// The naming convention follows Epson FastFoto batches: "0001.tif" is the
// base front scan, "0001_a.tif" an augmented capture of the same front, and
// "0001_b.tif" the backside page.
package variant

import (
	"path/filepath"
	"strings"
)

// Role classifies a scan file within its group.
type Role int

const (
	RoleFront     Role = iota // Base front scan (no suffix).
	RoleAugmented             // Enhanced front capture (_a suffix).
	RoleBack                  // Backside page (_b suffix).
)

// String returns the role label used in logs and archive routing.
func (r Role) String() string {
	switch r {
	case RoleAugmented:
		return "augmented"
	case RoleBack:
		return "back"
	default:
		return "front"
	}
}

// Variant is one physical scan file with its derived role and canonical
// stem. Immutable once computed.
type Variant struct {
	Path string
	Stem string // Canonical stem: filename stem with the role suffix removed.
	Role Role
}

// Parse derives a Variant from a file path. The role suffix comparison is
// case-insensitive ("0001_B.TIF" is a backside).
func Parse(path string) Variant {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	lower := strings.ToLower(stem)
	switch {
	case strings.HasSuffix(lower, "_a"):
		return Variant{Path: path, Stem: stem[:len(stem)-2], Role: RoleAugmented}
	case strings.HasSuffix(lower, "_b"):
		return Variant{Path: path, Stem: stem[:len(stem)-2], Role: RoleBack}
	default:
		return Variant{Path: path, Stem: stem, Role: RoleFront}
	}
}

// Group is the ordered set of variants sharing one canonical stem.
// Order is the insertion order of the input file list.
type Group struct {
	Stem     string
	Variants []Variant
}

// Fronts returns the front-side candidates (base and augmented) in order.
func (g *Group) Fronts() []Variant {
	var out []Variant
	for _, v := range g.Variants {
		if v.Role != RoleBack {
			out = append(out, v)
		}
	}
	return out
}

// Backs returns the backside pages in order.
func (g *Group) Backs() []Variant {
	var out []Variant
	for _, v := range g.Variants {
		if v.Role == RoleBack {
			out = append(out, v)
		}
	}
	return out
}
