package navigate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateprov/gateprov/internal/remote/remotetest"
	"github.com/gateprov/gateprov/internal/remote/session"
)

func liveSession(t *testing.T) (*remotetest.Panel, *session.Session) {
	t.Helper()
	panel := remotetest.New()
	t.Cleanup(panel.Close)

	sess, err := session.Establish(context.Background(), session.Config{
		BaseURL:  panel.URL(),
		Username: remotetest.Username,
		Password: remotetest.Password,
	})
	require.NoError(t, err)
	return panel, sess
}

func TestVisitStopsAtFirstMarkedPage(t *testing.T) {
	_, sess := liveSession(t)
	nav := New(sess, nil)

	res, err := nav.Visit(context.Background(),
		[]string{"/access_points", "/access_points/new"},
		[]string{"Access Points"})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, "/access_points", res.Path)
	assert.Contains(t, res.Body, "Access Points")
}

func TestVisitSkipsUnrenderedCandidates(t *testing.T) {
	_, sess := liveSession(t)
	nav := New(sess, nil)

	// /nope renders the dashboard via the catch-all, which lacks the marker;
	// the second candidate carries it.
	res, err := nav.Visit(context.Background(),
		[]string{"/nope", "/access_points/new"},
		[]string{"Access Points"})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, "/access_points/new", res.Path)
}

func TestVisitDegradesToLastRenderedPage(t *testing.T) {
	_, sess := liveSession(t)
	nav := New(sess, nil)

	res, err := nav.Visit(context.Background(),
		[]string{"/dashboard"},
		[]string{"No Such Section"})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, "/dashboard", res.Path)
	assert.Contains(t, res.Body, "Dashboard")
}

func TestVisitNoCandidateRenders(t *testing.T) {
	panel, sess := liveSession(t)
	panel.Close()
	nav := New(sess, nil)

	_, err := nav.Visit(context.Background(),
		[]string{"/access_points"}, []string{"Access Points"})
	assert.Error(t, err)
}
