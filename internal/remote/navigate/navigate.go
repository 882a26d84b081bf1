// Package navigate warms up server-side session state before writes.
//
// The panels only process some writes correctly after the session has
// "visited" the relevant section the way a human operator would. This is a
// defensive prerequisite, not a contract the panel advertises, so failure to
// find a recognized section page degrades instead of aborting.
package navigate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/remote/page"
	"github.com/gateprov/gateprov/internal/remote/session"
)

// Result is the page navigation settled on.
type Result struct {
	Body string
	Path string
	// Degraded means no candidate carried a section marker; Body is the
	// last page that rendered at all.
	Degraded bool
}

// Navigator issues preparatory navigation requests for one session.
type Navigator struct {
	sess *session.Session
	log  *logging.Logger
}

// New creates a navigator bound to a session.
func New(sess *session.Session, logger *logging.Logger) *Navigator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Navigator{sess: sess, log: logger.Named("navigate")}
}

// Visit fetches candidate paths in order and stops at the first rendered
// page containing one of the section markers. If none match, it returns the
// last rendered page with Degraded set. It only errors when no candidate
// rendered anything at all.
func (n *Navigator) Visit(ctx context.Context, paths []string, markers []string) (Result, error) {
	var last Result
	var lastErr error

	for _, path := range paths {
		out, err := n.sess.Get(ctx, path)
		if err != nil {
			lastErr = err
			n.log.Debug("candidate path failed", zap.String("path", path), zap.Error(err))
			continue
		}
		if out.Kind != page.KindRendered {
			n.log.Debug("candidate path not rendered",
				zap.String("path", path), zap.String("kind", out.Kind.String()))
			continue
		}

		last = Result{Body: out.Body, Path: path, Degraded: true}
		if containsAny(out.Body, markers) {
			last.Degraded = false
			return last, nil
		}
	}

	if last.Body == "" {
		if lastErr != nil {
			return Result{}, fmt.Errorf("no candidate path reachable: %w", lastErr)
		}
		return Result{}, fmt.Errorf("no candidate path rendered a page")
	}

	n.log.Warn("section marker not found, using last rendered page",
		zap.String("path", last.Path))
	return last, nil
}

func containsAny(body string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
