package field

import "github.com/nhbchain/field/crypto"

// Validate checks that a Config's values fall within the domains spec.md §3
// documents. It is run both on initial construction and after every
// update_config merge.
func (c *Config) Validate() error {
	if c.LongAsset == "" || c.ShortAsset == "" {
		return ErrInvalidConfig
	}
	if c.LongAsset == c.ShortAsset {
		return ErrInvalidConfig
	}
	if c.MaxLTVRay == nil || c.MaxLTVRay.IsZero() || c.MaxLTVRay.Cmp(ray) >= 0 {
		return ErrInvalidConfig
	}
	if c.FeeRateRay == nil || c.FeeRateRay.Cmp(ray) > 0 {
		return ErrInvalidConfig
	}
	if c.Tax.RateRay == nil || c.Tax.RateRay.Cmp(ray) > 0 {
		return ErrInvalidConfig
	}
	if c.Tax.CapWei == nil {
		return ErrInvalidConfig
	}
	if len(c.Treasury.Bytes()) == 0 {
		return ErrInvalidConfig
	}
	if len(c.Governance.Bytes()) == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// IsGovernance reports whether caller is the configured governance
// address, the access level update_config and add_keeper/remove_keeper
// require.
func (c *Config) IsGovernance(caller crypto.Address) bool {
	return caller.String() == c.Governance.String()
}

// IsKeeper reports whether caller is in the configured keeper set, the
// access level harvest requires.
func (c *Config) IsKeeper(caller crypto.Address) bool {
	for _, k := range c.Keepers {
		if k.String() == caller.String() {
			return true
		}
	}
	return false
}

// ConfigPatch carries the subset of Config fields an update_config call
// wants to change. A nil field means "leave unchanged" — the teacher's own
// governance-update ergonomics (RiskParameters-style partial patches)
// merge non-zero/non-nil fields onto the existing value rather than
// requiring the caller to resend the entire record.
type ConfigPatch struct {
	MaxLTVRay  *Amount
	FeeRateRay *Amount
	Tax        *TaxParams
	Treasury   *crypto.Address
	Pauses     *ActionPauses
}

// ApplyPatch merges patch onto a copy of c and validates the result,
// returning the merged Config without mutating c. The caller is
// responsible for persisting the returned value only after Validate
// succeeds, matching the teacher's validate-before-commit governance
// update flow.
func (c *Config) ApplyPatch(patch ConfigPatch) (Config, error) {
	merged := *c
	if patch.MaxLTVRay != nil {
		merged.MaxLTVRay = patch.MaxLTVRay
	}
	if patch.FeeRateRay != nil {
		merged.FeeRateRay = patch.FeeRateRay
	}
	if patch.Tax != nil {
		merged.Tax = *patch.Tax
	}
	if patch.Treasury != nil {
		merged.Treasury = *patch.Treasury
	}
	if patch.Pauses != nil {
		merged.Pauses = *patch.Pauses
	}
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}

// AddKeeper appends addr to the keeper set if not already present.
func (c *Config) AddKeeper(addr crypto.Address) {
	if c.IsKeeper(addr) {
		return
	}
	c.Keepers = append(c.Keepers, addr)
}

// RemoveKeeper removes addr from the keeper set, a no-op if absent.
func (c *Config) RemoveKeeper(addr crypto.Address) {
	out := c.Keepers[:0]
	for _, k := range c.Keepers {
		if k.String() != addr.String() {
			out = append(out, k)
		}
	}
	c.Keepers = out
}
