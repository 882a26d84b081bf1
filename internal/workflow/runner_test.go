package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateprov/gateprov/internal/entity"
	"github.com/gateprov/gateprov/internal/infrastructure/monitoring"
	"github.com/gateprov/gateprov/internal/remote/ident"
	"github.com/gateprov/gateprov/internal/remote/remotetest"
	"github.com/gateprov/gateprov/internal/remote/session"
)

func newRunner(t *testing.T, panel *remotetest.Panel) *Runner {
	t.Helper()
	sess, err := session.Establish(context.Background(), session.Config{
		BaseURL:    panel.URL(),
		Username:   remotetest.Username,
		Password:   remotetest.Password,
		RatePerSec: 1000, // tests hammer the fake panel
	})
	require.NoError(t, err)

	return NewRunner(sess, nil,
		WithIdentResolver(ident.New(nil, ident.WithRetryDelay(time.Millisecond))),
		WithInstanceLabel("test-panel"))
}

func TestCreateHappyPathRedirect(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "101", result.EntityID)
	assert.Equal(t, "/access_points/101/edit", result.EditPath)
	assert.Empty(t, result.Warning)
	assert.Empty(t, result.ChildFailures)

	creates := panel.SubmissionsTo("/access_points")
	require.Len(t, creates, 1)
	assert.Equal(t, "branch-gw", creates[0].Form["access_point[name]"])
	assert.Equal(t, remotetest.Token, creates[0].Form["authenticity_token"])
}

func TestCreateDuplicateName(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.Seed("250", "branch-gw")
	runner := newRunner(t, panel)

	_, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// nothing was submitted
	assert.Empty(t, panel.SubmissionsTo("/access_points"))
}

func TestDuplicateCheckIsIdempotent(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.Seed("250", "branch-gw")
	runner := newRunner(t, panel)

	_, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.ErrorIs(t, err, ErrDuplicateName)
	_, err = runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.ErrorIs(t, err, ErrDuplicateName)
}

func TestDuplicateCheckExactMatchOnly(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.Seed("250", "branch-gw-old")
	runner := newRunner(t, panel)

	// substring of an existing name must not count as a duplicate
	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCreateIDFromRenderedListing(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.CreateResponse = "listing"
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "101", result.EntityID)
}

func TestCreateIDThroughProxyPrefix(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.ProxyPrefix = "/gw/panel"
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)
	assert.Equal(t, "101", result.EntityID)
}

func TestCreateNoIDSignalSucceedsWithWarning(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.CreateResponse = "opaque"
	panel.HideNames["branch-gw"] = true // listing never shows the new row
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.EntityID)
	assert.Empty(t, result.EditPath)
	assert.NotEmpty(t, result.Warning)

	// the create itself did happen exactly once
	assert.Len(t, panel.SubmissionsTo("/access_points"), 1)
}

func TestCreateWithFullUpdate(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{
		Name:       "branch-gw",
		ListenHost: "10.0.0.1",
		ListenPort: 1080,
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	updates := panel.SubmissionsTo("/access_points/101")
	require.Len(t, updates, 1)
	assert.Equal(t, "patch", updates[0].Form["_method"])
	assert.Equal(t, "1080", updates[0].Form["access_point[listen_port]"])
}

func TestUpdateFailureDoesNotFailWorkflow(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.FailUpdates = true
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{
		Name:       "branch-gw",
		ListenPort: 1080,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "101", result.EntityID)
	assert.Contains(t, result.Warning, "update")
}

func TestMinimalDraftSkipsUpdate(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	runner := newRunner(t, panel)

	_, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)

	assert.Empty(t, panel.SubmissionsTo("/access_points/101"))
}

func TestChildAttachmentsPartialFailure(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.FailAttachments["18"] = true
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{
		Name:            "branch-gw",
		ChildProfileIDs: []string{"17", "18", "19"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	// all three were attempted, in order
	attaches := panel.SubmissionsTo("/access_points/101/profiles")
	require.Len(t, attaches, 3)
	assert.Equal(t, "17", attaches[0].Form["profile_binding[profile_id]"])
	assert.Equal(t, "18", attaches[1].Form["profile_binding[profile_id]"])
	assert.Equal(t, "19", attaches[2].Form["profile_binding[profile_id]"])

	// exactly one recorded failure
	require.Len(t, result.ChildFailures, 1)
	assert.Equal(t, "18", result.ChildFailures[0].Ref)
}

func TestChildrenWithUnresolvedID(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.CreateResponse = "opaque"
	panel.HideNames["branch-gw"] = true
	runner := newRunner(t, panel)

	result, err := runner.Create(context.Background(), &entity.Draft{
		Name:            "branch-gw",
		ChildProfileIDs: []string{"17", "19"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.ChildFailures, 2)
	assert.Equal(t, "entity id unresolved", result.ChildFailures[0].Reason)
}

func TestCreateFailsWhenPanelUnreachable(t *testing.T) {
	panel := remotetest.New()
	runner := newRunner(t, panel)
	panel.Close()

	_, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	assert.ErrorIs(t, err, ErrDuplicateCheckFailed)
}

func TestMetricsObserveRunTokenAndSteps(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	m := monitoring.New(prometheus.NewRegistry())
	sess, err := session.Establish(context.Background(), session.Config{
		BaseURL:    panel.URL(),
		Username:   remotetest.Username,
		Password:   remotetest.Password,
		RatePerSec: 1000,
		Metrics:    m,
	})
	require.NoError(t, err)

	runner := NewRunner(sess, nil,
		WithMetrics(m),
		WithIdentResolver(ident.New(nil, ident.WithRetryDelay(time.Millisecond))),
		WithInstanceLabel("test-panel"))

	result, err := runner.Create(context.Background(), &entity.Draft{Name: "branch-gw"})
	require.NoError(t, err)
	require.True(t, result.Success)

	// run outcome
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.WorkflowRuns.WithLabelValues("test-panel", "success")))

	// token came from the new-form hidden field
	assert.GreaterOrEqual(t, testutil.ToFloat64(
		m.TokenExtractions.WithLabelValues("hidden-field", "hit")), 1.0)

	// every executed step was timed: checking_duplicate, creating, resolving_id
	assert.Equal(t, 3, testutil.CollectAndCount(m.StepDuration))

	// remote round trips were recorded through the session
	assert.GreaterOrEqual(t, testutil.ToFloat64(
		m.RemoteCalls.WithLabelValues(sess.BaseHost(), "write", "302")), 1.0)
}

func TestListingHasName(t *testing.T) {
	html := `<table>
<tr><td>branch-gw</td><td><a href="/access_points/1/edit">Edit</a></td></tr>
</table>`
	assert.True(t, listingHasName(html, "branch-gw"))
	assert.False(t, listingHasName(html, "branch"))
	assert.False(t, listingHasName(html, "other"))
}
