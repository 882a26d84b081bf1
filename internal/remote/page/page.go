package page

import (
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Kind tags what the remote panel actually handed back. Legacy panels answer
// the same submission with a redirect, a rendered page, or nothing usable,
// and callers must branch on which one it was instead of guessing.
type Kind int

const (
	// KindRendered means the response carried an HTML body.
	KindRendered Kind = iota
	// KindRedirected means the response was a 3xx with a Location header.
	KindRedirected
	// KindOpaque means the response carried no signal worth parsing:
	// an empty body, a non-HTML payload, or a 3xx without Location.
	KindOpaque
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindRendered:
		return "rendered"
	case KindRedirected:
		return "redirected"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one remote round trip.
type Outcome struct {
	Kind         Kind
	StatusCode   int
	Location     string // set when Kind == KindRedirected
	Body         string // decoded, set when Kind == KindRendered
	EffectiveURL string // URL the request effectively ended at
}

// Classify inspects a response fetched with redirects disabled and tags it.
func Classify(resp *resty.Response) Outcome {
	out := Outcome{
		StatusCode:   resp.StatusCode(),
		EffectiveURL: resp.Request.URL,
	}
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		out.EffectiveURL = resp.RawResponse.Request.URL.String()
	}

	if resp.StatusCode() >= http.StatusMultipleChoices && resp.StatusCode() < http.StatusBadRequest {
		location := resp.Header().Get("Location")
		if location == "" {
			out.Kind = KindOpaque
			return out
		}
		out.Kind = KindRedirected
		out.Location = location
		return out
	}

	body := Decode(resp.Body(), resp.Header().Get("Content-Type"))
	if !looksLikeHTML(body, resp.Header().Get("Content-Type")) {
		out.Kind = KindOpaque
		return out
	}

	out.Kind = KindRendered
	out.Body = body
	return out
}

func looksLikeHTML(body, contentType string) bool {
	if strings.TrimSpace(body) == "" {
		return false
	}
	if strings.Contains(contentType, "text/html") {
		return true
	}
	trimmed := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html")
}
