package session

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gateprov/gateprov/internal/remote/page"
)

// Get fetches a path with the navigation timeout.
func (s *Session) Get(ctx context.Context, path string) (page.Outcome, error) {
	return s.GetWithTimeout(ctx, path, s.cfg.NavTimeout)
}

// GetWithTimeout fetches a path with an explicit per-call budget.
func (s *Session) GetWithTimeout(ctx context.Context, path string, timeout time.Duration) (page.Outcome, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return page.Outcome{}, classifyCallError(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := s.http.R().
		SetContext(callCtx).
		Get(s.absolute(path))
	if err != nil && !isRedirectStop(resp) {
		s.recordError("read")
		return page.Outcome{}, classifyCallError(err)
	}
	s.recordCall("read", resp.StatusCode())
	return page.Classify(resp), nil
}

// PostForm submits a form-encoded body with the write timeout. Redirect
// following stays disabled so the raw status, headers and body are available
// for identifier extraction.
func (s *Session) PostForm(ctx context.Context, path string, form url.Values) (page.Outcome, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return page.Outcome{}, classifyCallError(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	resp, err := s.http.R().
		SetContext(callCtx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(form.Encode()).
		Post(s.absolute(path))
	if err != nil && !isRedirectStop(resp) {
		s.recordError("write")
		return page.Outcome{}, classifyCallError(err)
	}
	s.recordCall("write", resp.StatusCode())
	return page.Classify(resp), nil
}

// isRedirectStop reports whether the "error" is just the disabled redirect
// policy refusing to follow; the response itself is still usable.
func isRedirectStop(resp *resty.Response) bool {
	return resp != nil && resp.RawResponse != nil &&
		resp.StatusCode() >= 300 && resp.StatusCode() < 400
}
