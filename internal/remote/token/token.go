package token

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// ErrTokenNotFound means no extraction strategy produced a valid token,
// including after one fresh refetch of the login page.
var ErrTokenNotFound = errors.New("no valid anti-forgery token found")

// Field names the product line uses for its anti-forgery token. The set is
// versioned with the remote product; order matters for the hidden-field scan.
var tokenFieldNames = []string{"authenticity_token", "csrf_token", "_token"}

// Strategy is one named way of pulling token candidates out of a page.
// Strategies only extract; validation is shared and happens in the cascade.
type Strategy struct {
	Name    string
	Extract func(html string) []string
}

// Recorder receives per-strategy extraction outcomes for metrics.
type Recorder interface {
	RecordTokenExtraction(strategy, result string)
}

// Resolver applies an ordered cascade of extraction strategies.
type Resolver struct {
	strategies []Strategy
	recorder   Recorder
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(res *Resolver) { res.recorder = r }
}

// NewResolver creates a resolver with the default strategy cascade.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		strategies: []Strategy{
			{Name: "hidden-field", Extract: extractHiddenFields},
			{Name: "meta-tag", Extract: extractMetaTags},
			{Name: "xpath-input", Extract: extractXPathInputs},
			{Name: "script-var", Extract: extractScriptVars},
			{Name: "base64-fallback", Extract: extractBase64Runs},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the cascade over one page and returns the first valid token.
func (r *Resolver) Resolve(html string) (string, error) {
	for _, strategy := range r.strategies {
		for _, candidate := range strategy.Extract(html) {
			if Valid(candidate) {
				r.record(strategy.Name, "hit")
				return strings.TrimSpace(candidate), nil
			}
			r.record(strategy.Name, "rejected")
		}
		r.record(strategy.Name, "miss")
	}
	return "", ErrTokenNotFound
}

// ResolveWithRefetch runs the cascade over the given page and, if nothing
// valid turns up, refetches the login page fresh and retries once.
func (r *Resolver) ResolveWithRefetch(ctx context.Context, html string, refetch func(context.Context) (string, error)) (string, error) {
	if tok, err := r.Resolve(html); err == nil {
		return tok, nil
	}

	fresh, err := refetch(ctx)
	if err != nil {
		return "", fmt.Errorf("token refetch failed: %w", err)
	}
	tok, err := r.Resolve(fresh)
	if err != nil {
		return "", ErrTokenNotFound
	}
	return tok, nil
}

func (r *Resolver) record(strategy, result string) {
	if r.recorder != nil {
		r.recorder.RecordTokenExtraction(strategy, result)
	}
}

// extractHiddenFields pulls values of hidden inputs carrying a known token
// field name, in document order.
func extractHiddenFields(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	for _, name := range tokenFieldNames {
		doc.Find(fmt.Sprintf("input[name=%s]", name)).Each(func(i int, s *goquery.Selection) {
			if v, ok := s.Attr("value"); ok && v != "" {
				out = append(out, v)
			}
		})
	}
	return out
}

// extractMetaTags pulls csrf meta tag content.
func extractMetaTags(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	for _, sel := range []string{`meta[name=csrf-token]`, `meta[name=csrf_token]`} {
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			if v, ok := s.Attr("content"); ok && v != "" {
				out = append(out, v)
			}
		})
	}
	return out
}

// extractXPathInputs re-scans for token inputs via XPath. Some panel pages
// nest forms inside unclosed table markup that goquery's normalization
// reparents; htmlquery walks the raw node tree and still finds them.
func extractXPathInputs(html string) []string {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	for _, name := range tokenFieldNames {
		nodes, err := htmlquery.QueryAll(doc, fmt.Sprintf("//input[@name='%s']", name))
		if err != nil {
			continue
		}
		for _, node := range nodes {
			if v := htmlquery.SelectAttr(node, "value"); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

var scriptVarRe = regexp.MustCompile(`(?i)(?:authenticity_token|csrf_token|csrf-token|_token)["']?\s*[:=]\s*["']([^"']+)["']`)

// extractScriptVars pulls quoted values of inline script assignments to
// token-like variable names.
func extractScriptVars(html string) []string {
	matches := scriptVarRe.FindAllStringSubmatch(html, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

var base64RunRe = regexp.MustCompile(`[A-Za-z0-9_-]{30,}={0,2}`)

// extractBase64Runs is the last-resort sweep for long base64url-like runs
// anywhere in the page.
func extractBase64Runs(html string) []string {
	return base64RunRe.FindAllString(html, -1)
}
