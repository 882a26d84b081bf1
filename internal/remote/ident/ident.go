// Package ident recovers a newly created entity's server-assigned id.
//
// The panel never returns the id in structured form: it arrives, if at all,
// as a redirect target, an edit link in a listing row, or the URL an
// upstream proxy silently followed to. Resolution is an ordered fallback
// chain over those signals, and an inconclusive chain is a legitimate
// outcome the caller downgrades to success-with-warning.
package ident

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/remote/page"
)

// MaxIDDigits bounds plausible ids; longer digit runs are timestamps or
// hashes misread as ids.
const MaxIDDigits = 12

// DefaultRetryDelay is how long to wait before re-running the chain when the
// panel may still be committing the write.
const DefaultRetryDelay = 1500 * time.Millisecond

var editLinkRe = regexp.MustCompile(`/(\d+)/edit\b`)

// Resolver runs the id resolution chain.
type Resolver struct {
	log        *logging.Logger
	retryDelay time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetryDelay overrides the pre-retry settle delay.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Resolver) { r.retryDelay = d }
}

// New creates a resolver.
func New(logger *logging.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Resolver{
		log:        logger.Named("ident"),
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve recovers the created entity's id from a create outcome. The chain
// is read-only; refetchListing re-fetches the canonical listing page and may
// be nil. Returns "" and false when every step is inconclusive.
func (r *Resolver) Resolve(ctx context.Context, out page.Outcome, name string, refetchListing func(context.Context) (string, error)) (string, bool) {
	if id, ok := r.resolveOnce(ctx, out, name, refetchListing); ok {
		return id, true
	}

	// The panel may still be committing; settle, then re-run the whole
	// read-only chain once.
	select {
	case <-ctx.Done():
		return "", false
	case <-time.After(r.retryDelay):
	}
	return r.resolveOnce(ctx, out, name, refetchListing)
}

func (r *Resolver) resolveOnce(ctx context.Context, out page.Outcome, name string, refetchListing func(context.Context) (string, error)) (string, bool) {
	// 1. Redirect target carries the id as its trailing numeric segment.
	if out.Kind == page.KindRedirected {
		if id, ok := FromPath(out.Location); ok {
			r.log.Debug("id from redirect", zap.String("id", id))
			return id, true
		}
	}

	// 2. The create rendered a listing or detail page directly.
	if out.Kind == page.KindRendered {
		if id, ok := FromListing(out.Body, name); ok {
			r.log.Debug("id from rendered listing", zap.String("id", id))
			return id, true
		}
	}

	// 3. Re-fetch the canonical listing and scan again.
	if refetchListing != nil {
		if body, err := refetchListing(ctx); err == nil {
			if id, ok := FromListing(body, name); ok {
				r.log.Debug("id from refetched listing", zap.String("id", id))
				return id, true
			}
		} else {
			r.log.Debug("listing refetch failed", zap.Error(err))
		}
	}

	// 4. An upstream-followed redirect may have landed on the detail URL.
	if out.EffectiveURL != "" {
		if id, ok := FromPath(out.EffectiveURL); ok {
			r.log.Debug("id from effective URL", zap.String("id", id))
			return id, true
		}
	}

	return "", false
}

// FromPath extracts the trailing numeric path segment of a URL or path,
// ignoring scheme, host, query and any reverse-proxy path prefix.
func FromPath(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	path := parsed.Path
	if path == "" {
		path = raw
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if Plausible(segments[i]) {
			return segments[i], true
		}
	}
	return "", false
}

// FromListing scans listing/detail markup for the edit link inside the table
// row whose text contains the submitted name. With several matching rows the
// last one in document order wins as the best available guess for most
// recently created; the panel gives no explicit recency guarantee.
func FromListing(html, name string) (string, bool) {
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var id string
	doc.Find("tr").Each(func(i int, row *goquery.Selection) {
		if !strings.Contains(row.Text(), name) {
			return
		}
		row.Find("a[href]").Each(func(j int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if m := editLinkRe.FindStringSubmatch(href); m != nil && Plausible(m[1]) {
				id = m[1]
			}
		})
	})

	return id, id != ""
}

// Plausible reports whether a candidate looks like a panel-assigned id:
// non-empty, digits only, bounded length.
func Plausible(candidate string) bool {
	if candidate == "" || len(candidate) > MaxIDDigits {
		return false
	}
	for _, c := range candidate {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
