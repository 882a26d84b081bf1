package entity

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Report is the outcome of a network-free draft validation.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a draft without touching the network: required fields,
// address/domain syntax, port range, and plausibility of profile references.
func Validate(d *Draft) Report {
	report := Report{Valid: true}

	if err := validate.Struct(d); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrors {
				report.Errors = append(report.Errors, describeFieldError(fe))
			}
		} else {
			report.Errors = append(report.Errors, err.Error())
		}
	}

	// Checks the tag vocabulary cannot express
	if strings.TrimSpace(d.Name) != d.Name {
		report.Errors = append(report.Errors, "name must not have leading or trailing whitespace")
	}
	for i, ref := range d.ChildProfileIDs {
		if len(ref) > 12 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("child_profile_ids[%d]: %q is not a plausible profile id", i, ref))
		}
	}
	if len(d.ProfileID) > 12 {
		report.Errors = append(report.Errors,
			fmt.Sprintf("profile_id: %q is not a plausible profile id", d.ProfileID))
	}

	if !d.EnabledValue() {
		report.Warnings = append(report.Warnings, "entity will be created disabled")
	}
	if d.RateLimitKbps == 0 && d.HasExtendedFields() {
		report.Warnings = append(report.Warnings, "no rate limit set; remote default is unlimited")
	}
	for k := range d.Extra {
		if !strings.Contains(k, "[") {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("extra field %q does not look like a panel form key", k))
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldLabel(fe))
	case "max":
		return fmt.Sprintf("%s exceeds maximum length %s", fieldLabel(fe), fe.Param())
	case "min":
		return fmt.Sprintf("%s is below minimum %s", fieldLabel(fe), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", fieldLabel(fe))
	case "hostname_rfc1123|ip":
		return fmt.Sprintf("%s must be a hostname or IP address", fieldLabel(fe))
	case "ip":
		return fmt.Sprintf("%s must be an IP address", fieldLabel(fe))
	case "fqdn":
		return fmt.Sprintf("%s must be a fully qualified domain name", fieldLabel(fe))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fieldLabel(fe), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fieldLabel(fe), fe.Tag())
	}
}

func fieldLabel(fe validator.FieldError) string {
	// StructNamespace is Draft.Field; strip the type prefix
	ns := fe.StructNamespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	return ns
}
