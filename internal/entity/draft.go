// Package entity models the network access point being provisioned and the
// exact form vocabulary the remote panel parses.
package entity

// Draft is the caller-supplied configuration for one access point. Only Name
// (and the enabled flag) are required for creation; everything else rides on
// the optional full update. Unknown keys in Extra pass through to the form
// encoding verbatim so new remote field vocabularies work without a release.
type Draft struct {
	Name    string `json:"name" yaml:"name" validate:"required,max=128"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled"`

	ProfileID  string `json:"profile_id,omitempty" yaml:"profile_id" validate:"omitempty,numeric"`
	ListenHost string `json:"listen_host,omitempty" yaml:"listen_host" validate:"omitempty,hostname_rfc1123|ip"`
	ListenPort int    `json:"listen_port,omitempty" yaml:"listen_port" validate:"omitempty,min=1,max=65535"`
	Domain     string `json:"domain,omitempty" yaml:"domain" validate:"omitempty,fqdn"`

	AuthMode      string `json:"auth_mode,omitempty" yaml:"auth_mode" validate:"omitempty,oneof=none basic token"`
	NATAddress    string `json:"nat_address,omitempty" yaml:"nat_address" validate:"omitempty,ip"`
	RateLimitKbps int    `json:"rate_limit_kbps,omitempty" yaml:"rate_limit_kbps" validate:"omitempty,min=0"`

	ChildProfileIDs []string          `json:"child_profile_ids,omitempty" yaml:"child_profile_ids" validate:"omitempty,dive,numeric"`
	Extra           map[string]string `json:"extra,omitempty" yaml:"extra"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (d *Draft) EnabledValue() bool {
	if d.Enabled == nil {
		return true
	}
	return *d.Enabled
}

// HasExtendedFields reports whether the draft carries anything beyond the
// minimal create set. Only then is the full-update submission worth making.
func (d *Draft) HasExtendedFields() bool {
	return d.ProfileID != "" ||
		d.ListenHost != "" ||
		d.ListenPort != 0 ||
		d.Domain != "" ||
		d.AuthMode != "" ||
		d.NATAddress != "" ||
		d.RateLimitKbps != 0 ||
		len(d.Extra) > 0
}
