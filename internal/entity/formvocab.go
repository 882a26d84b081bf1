package entity

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Form field vocabulary and paths for the access-point screens. The panel
// parses submissions by exact key, so these are fixtures replicated from the
// product, not names to redesign.
const (
	FieldToken          = "authenticity_token"
	FieldMethodOverride = "_method"

	fieldName       = "access_point[name]"
	fieldEnabled    = "access_point[enabled]"
	fieldProfile    = "access_point[profile_id]"
	fieldListenHost = "access_point[listen_host]"
	fieldListenPort = "access_point[listen_port]"
	fieldDomain     = "access_point[domain]"
	fieldAuthMode   = "access_point[auth_mode]"
	fieldNATAddr    = "access_point[nat_address]"
	fieldRateLimit  = "access_point[rate_limit_kbps]"

	fieldChildProfile = "profile_binding[profile_id]"
)

const (
	// CollectionPath lists and creates access points.
	CollectionPath = "/access_points"
	// NewPath renders the creation form.
	NewPath = "/access_points/new"
)

// SectionMarkers identify an access-point section page by body content.
var SectionMarkers = []string{"Access Points", "access_points"}

// MemberPath is the detail/update path for one access point.
func MemberPath(id string) string {
	return fmt.Sprintf("%s/%s", CollectionPath, id)
}

// EditPath is the edit screen path for one access point.
func EditPath(id string) string {
	return fmt.Sprintf("%s/%s/edit", CollectionPath, id)
}

// ChildPath is the child-profile attachment path for one access point.
func ChildPath(id string) string {
	return fmt.Sprintf("%s/%s/profiles", CollectionPath, id)
}

// EncodeMinimal builds the create submission: only the fields the panel
// requires to commit a new record.
func EncodeMinimal(d *Draft, token string) url.Values {
	form := url.Values{}
	form.Set(FieldToken, token)
	form.Set(fieldName, d.Name)
	form.Set(fieldEnabled, boolField(d.EnabledValue()))
	return form
}

// EncodeFull builds the full-update submission carrying every supplied
// field, with the method override the panel expects for updates. Extra keys
// are appended verbatim, in sorted order for stable output.
func EncodeFull(d *Draft, token string) url.Values {
	form := EncodeMinimal(d, token)
	form.Set(FieldMethodOverride, "patch")

	if d.ProfileID != "" {
		form.Set(fieldProfile, d.ProfileID)
	}
	if d.ListenHost != "" {
		form.Set(fieldListenHost, d.ListenHost)
	}
	if d.ListenPort != 0 {
		form.Set(fieldListenPort, strconv.Itoa(d.ListenPort))
	}
	if d.Domain != "" {
		form.Set(fieldDomain, d.Domain)
	}
	if d.AuthMode != "" {
		form.Set(fieldAuthMode, d.AuthMode)
	}
	if d.NATAddress != "" {
		form.Set(fieldNATAddr, d.NATAddress)
	}
	if d.RateLimitKbps != 0 {
		form.Set(fieldRateLimit, strconv.Itoa(d.RateLimitKbps))
	}

	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set(k, d.Extra[k])
	}
	return form
}

// EncodeChild builds one child-profile attachment submission.
func EncodeChild(profileID, token string) url.Values {
	form := url.Values{}
	form.Set(FieldToken, token)
	form.Set(fieldChildProfile, profileID)
	return form
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
