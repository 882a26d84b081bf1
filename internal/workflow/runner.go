// Package workflow orchestrates the multi-step creation of one access point
// on one remote panel: duplicate check, create submission, id recovery,
// optional full update, and optional child-profile attachments.
//
// Steps run strictly sequentially; each depends on the observable output of
// the previous one. At most one create and one update submission happen per
// run, and nothing is ever rolled back: once the create committed remotely,
// every later problem downgrades the result instead of failing it.
package workflow

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/gateprov/gateprov/internal/entity"
	"github.com/gateprov/gateprov/internal/infrastructure/monitoring"
	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/remote/ident"
	"github.com/gateprov/gateprov/internal/remote/navigate"
	"github.com/gateprov/gateprov/internal/remote/page"
	"github.com/gateprov/gateprov/internal/remote/session"
	"github.com/gateprov/gateprov/internal/remote/token"
)

// Runner executes creation workflows over one established session. A runner
// owns its session exclusively for the duration of a run.
type Runner struct {
	sess     *session.Session
	nav      *navigate.Navigator
	ids      *ident.Resolver
	tokens   *token.Resolver
	log      *logging.Logger
	metrics  *monitoring.Metrics
	sanitize *bluemonday.Policy
	instance string
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithIdentResolver overrides the id resolver (tests shorten its delay).
func WithIdentResolver(res *ident.Resolver) Option {
	return func(r *Runner) { r.ids = res }
}

// WithInstanceLabel sets the instance label used in logs and metrics.
func WithInstanceLabel(label string) Option {
	return func(r *Runner) { r.instance = label }
}

// NewRunner creates a runner over an established session.
func NewRunner(sess *session.Session, logger *logging.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		sess:     sess,
		log:      logger.Named("workflow"),
		sanitize: bluemonday.StrictPolicy(),
		instance: sess.BaseHost(),
	}
	r.nav = navigate.New(sess, logger)
	r.ids = ident.New(logger)
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics != nil {
		r.tokens = token.NewResolver(token.WithRecorder(r.metrics))
	} else {
		r.tokens = token.NewResolver()
	}
	return r
}

// Create runs the full workflow for one draft. The returned error is non-nil
// only for fatal outcomes (duplicate name, unusable session, create
// submission failure); every caveated outcome is expressed on the Result.
func (r *Runner) Create(ctx context.Context, draft *entity.Draft) (*Result, error) {
	start := time.Now()
	log := r.log.With(zap.String("entity", draft.Name), zap.String("instance", r.instance))

	result, err := r.run(ctx, draft, log)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
	case result.Warning != "" || len(result.ChildFailures) > 0:
		outcome = "caveated"
	}
	if r.metrics != nil {
		r.metrics.RecordWorkflow(r.instance, outcome, time.Since(start))
	}
	log.Info("workflow finished",
		zap.String("outcome", outcome),
		zap.String("entity_id", result.EntityID),
		zap.Duration("took", time.Since(start)))
	return result, err
}

func (r *Runner) run(ctx context.Context, draft *entity.Draft, log *logging.Logger) (*Result, error) {
	result := &Result{}

	// CheckingDuplicate
	timer := r.step(log, StateCheckingDuplicate)
	exists, err := r.duplicateCheck(ctx, draft.Name)
	timer.Stop()
	if err != nil {
		result.Message = "could not verify the name is unused"
		return result, fmt.Errorf("%w: %v", ErrDuplicateCheckFailed, err)
	}
	if exists {
		result.Message = fmt.Sprintf("an access point named %q already exists", draft.Name)
		return result, ErrDuplicateName
	}

	// Creating
	timer = r.step(log, StateCreating)
	created, tok, err := r.create(ctx, draft)
	timer.Stop()
	if err != nil {
		result.Message = "create submission could not be performed"
		return result, err
	}

	// ResolvingId: from here on the remote side effect has happened and
	// nothing may fail the workflow anymore.
	timer = r.step(log, StateResolvingID)
	id, ok := r.ids.Resolve(ctx, created, draft.Name, r.listingFetcher())
	timer.Stop()

	result.Success = true
	result.EntityID = id
	result.Message = fmt.Sprintf("access point %q created", draft.Name)
	if ok {
		result.EditPath = entity.EditPath(id)
	} else {
		result.addWarning("created, but the new id could not be determined; not retrying to avoid a duplicate")
	}

	// Updating: only when the caller supplied more than the minimal set.
	if draft.HasExtendedFields() {
		timer = r.step(log, StateUpdating)
		r.update(ctx, draft, id, tok, result, log)
		timer.Stop()
	}

	// AttachingChildren: independent, ordered, individually failable.
	if len(draft.ChildProfileIDs) > 0 {
		timer = r.step(log, StateAttachingChildren)
		r.attachChildren(ctx, draft.ChildProfileIDs, id, tok, result, log)
		timer.Stop()
	}

	r.step(log, StateDone)
	return result, nil
}

// duplicateCheck scans the listing for an exact name match. A listing
// without the name (or a not-found page) means "does not exist". The check
// is read-only and idempotent; it offers no cross-run atomicity, so two
// concurrent runs for one name can both pass it.
func (r *Runner) duplicateCheck(ctx context.Context, name string) (bool, error) {
	out, err := r.sess.GetWithTimeout(ctx, entity.CollectionPath, 30*time.Second)
	if err != nil {
		return false, err
	}
	switch out.Kind {
	case page.KindRendered:
		return listingHasName(out.Body, name), nil
	case page.KindRedirected:
		return false, fmt.Errorf("listing fetch redirected to %s (session lost?)", out.Location)
	default:
		if out.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("listing fetch returned no usable page (status %d)", out.StatusCode)
	}
}

// create warms up the section, resolves a token, and performs the one create
// submission of the run. Returns the classified outcome and the token for
// reuse by later submissions in the same session window.
func (r *Runner) create(ctx context.Context, draft *entity.Draft) (page.Outcome, string, error) {
	visited, err := r.nav.Visit(ctx,
		[]string{entity.NewPath, entity.CollectionPath},
		entity.SectionMarkers)
	if err != nil {
		return page.Outcome{}, "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	tok, err := r.tokens.ResolveWithRefetch(ctx, visited.Body, r.sess.FetchLoginPage)
	if err != nil {
		return page.Outcome{}, "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	out, err := r.sess.PostForm(ctx, entity.CollectionPath, entity.EncodeMinimal(draft, tok))
	if err != nil {
		return page.Outcome{}, "", fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}
	if out.StatusCode >= http.StatusBadRequest {
		return page.Outcome{}, "", fmt.Errorf("%w: panel rejected the submission: %s",
			ErrCreateFailed, r.pageMessage(out))
	}
	return out, tok, nil
}

// update performs the single full-update submission. Failures are recorded
// on the result; the created entity stays as the minimal create left it.
func (r *Runner) update(ctx context.Context, draft *entity.Draft, id, tok string, result *Result, log *logging.Logger) {
	if id == "" {
		result.addWarning("full update skipped: entity id unresolved")
		return
	}

	out, err := r.sess.PostForm(ctx, entity.MemberPath(id), entity.EncodeFull(draft, tok))
	if err != nil {
		result.addWarning(fmt.Sprintf("full update failed: %v", err))
		return
	}
	if out.StatusCode >= http.StatusBadRequest {
		log.Warn("update rejected", zap.Int("status", out.StatusCode))
		result.addWarning(fmt.Sprintf("full update rejected: %s", r.pageMessage(out)))
	}
}

// attachChildren runs the per-child attachment loop. Each item fails
// independently; the loop always reaches the last child.
func (r *Runner) attachChildren(ctx context.Context, refs []string, id, tok string, result *Result, log *logging.Logger) {
	for _, ref := range refs {
		if id == "" {
			result.ChildFailures = append(result.ChildFailures,
				ChildFailure{Ref: ref, Reason: "entity id unresolved"})
			continue
		}

		out, err := r.sess.PostForm(ctx, entity.ChildPath(id), entity.EncodeChild(ref, tok))
		switch {
		case err != nil:
			result.ChildFailures = append(result.ChildFailures,
				ChildFailure{Ref: ref, Reason: err.Error()})
		case out.StatusCode >= http.StatusBadRequest:
			result.ChildFailures = append(result.ChildFailures,
				ChildFailure{Ref: ref, Reason: r.pageMessage(out)})
		default:
			log.Debug("child profile attached", zap.String("ref", ref))
		}
	}
}

// listingFetcher returns the canonical-listing refetch used by id resolution.
func (r *Runner) listingFetcher() func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		out, err := r.sess.GetWithTimeout(ctx, entity.CollectionPath, 30*time.Second)
		if err != nil {
			return "", err
		}
		if out.Kind != page.KindRendered {
			return "", fmt.Errorf("listing not rendered (%s)", out.Kind)
		}
		return out.Body, nil
	}
}

// pageMessage extracts a short, markup-free message from a rendered panel
// response for inclusion in results shown to callers.
func (r *Runner) pageMessage(out page.Outcome) string {
	if out.Kind != page.KindRendered {
		return fmt.Sprintf("status %d", out.StatusCode)
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(out.Body)); err == nil {
		for _, sel := range []string{".error", ".flash", ".alert"} {
			if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
				return r.sanitize.Sanitize(text)
			}
		}
	}

	plain := strings.TrimSpace(r.sanitize.Sanitize(out.Body))
	plain = strings.Join(strings.Fields(plain), " ")
	if len(plain) > 160 {
		plain = plain[:160]
	}
	if plain == "" {
		return fmt.Sprintf("status %d", out.StatusCode)
	}
	return plain
}

// step logs the state transition and starts its duration timer.
func (r *Runner) step(log *logging.Logger, s State) *monitoring.Timer {
	log.Debug("state transition", zap.String("state", s.String()))
	return monitoring.NewTimer(r.metrics, s.String())
}

// listingHasName reports whether any listing row's first cell equals name.
// Exact cell comparison, not substring: "gw" must not match "branch-gw".
func listingHasName(html, name string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	found := false
	doc.Find("tr td:first-child").Each(func(i int, cell *goquery.Selection) {
		if strings.TrimSpace(cell.Text()) == name {
			found = true
		}
	})
	return found
}
