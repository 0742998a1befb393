package permission

import (
	"fmt"

	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
)

// ConfigGrants keeps grants in the persisted configuration, one key per kind.
// Saving a grant replaces the previous one.
type ConfigGrants struct {
	cfg *config.BaseConfig
}

// NewConfigGrants creates a grant store over cfg.
func NewConfigGrants(cfg *config.BaseConfig) *ConfigGrants {
	return &ConfigGrants{cfg: cfg}
}

// Grant implements document.GrantSource
func (c *ConfigGrants) Grant(kind core.StorageKind) (core.AccessGrant, bool) {
	var grant core.AccessGrant
	switch kind {
	case core.KindSdCard:
		grant = core.AccessGrant{Kind: kind, RootPath: c.cfg.SDCardPath(), TreeURI: c.cfg.TreeURI()}
	case core.KindOtg:
		grant = core.AccessGrant{Kind: kind, RootPath: core.OTGPrefix, TreeURI: c.cfg.OTGTreeURI()}
	default:
		return core.AccessGrant{}, false
	}
	return grant, !grant.IsZero()
}

// SaveGrant implements GrantStore
func (c *ConfigGrants) SaveGrant(grant core.AccessGrant) error {
	switch grant.Kind {
	case core.KindSdCard:
		return c.cfg.SetTreeURI(grant.TreeURI)
	case core.KindOtg:
		if err := c.cfg.SetOTGTreeURI(grant.TreeURI); err != nil {
			return err
		}
		return c.cfg.SetOTGPartition(document.VolumeID(grant))
	default:
		return fmt.Errorf("%s storage takes no grant", grant.Kind)
	}
}

// Clear forgets the grant for kind.
func (c *ConfigGrants) Clear(kind core.StorageKind) error {
	return c.SaveGrant(core.AccessGrant{Kind: kind})
}
