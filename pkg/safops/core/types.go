// Package core holds the types shared by every safops package: storage kinds,
// access grants, error sentinels and the event bus.
package core

// OTGPrefix is the sentinel path prefix under which OTG storage is addressed.
// OTG media never has a direct filesystem path.
const OTGPrefix = "otg:/"

// StorageKind identifies which access strategy applies to a path.
type StorageKind int

const (
	// KindInternal paths are reachable through the direct file API.
	KindInternal StorageKind = iota
	// KindSdCard paths live on removable media gated by a tree grant.
	KindSdCard
	// KindOtg paths are only reachable through the document provider.
	KindOtg
)

func (k StorageKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindSdCard:
		return "sd_card"
	case KindOtg:
		return "otg"
	default:
		return "unknown"
	}
}

// NeedsCapability reports whether writes under this kind require a grant.
func (k StorageKind) NeedsCapability() bool {
	return k == KindSdCard || k == KindOtg
}

// AccessGrant is a persisted capability token for one storage root.
type AccessGrant struct {
	Kind     StorageKind
	RootPath string
	TreeURI  string
}

// IsZero reports whether the grant carries no token.
func (g AccessGrant) IsZero() bool {
	return g.TreeURI == ""
}
