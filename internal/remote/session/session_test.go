package session

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateprov/gateprov/internal/infrastructure/monitoring"
	"github.com/gateprov/gateprov/internal/remote/page"
	"github.com/gateprov/gateprov/internal/remote/remotetest"
	"github.com/gateprov/gateprov/internal/remote/token"
)

func establish(t *testing.T, panel *remotetest.Panel, username, password string) (*Session, error) {
	t.Helper()
	return Establish(context.Background(), Config{
		BaseURL:  panel.URL(),
		Username: username,
		Password: password,
	})
}

func TestEstablishSuccess(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	s, err := establish(t, panel, remotetest.Username, remotetest.Password)
	require.NoError(t, err)

	assert.Equal(t, remotetest.Token, s.Token)
	assert.True(t, token.Valid(s.Token))
	assert.False(t, s.EstablishedAt.IsZero())
}

func TestEstablishBadCredentials(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	_, err := establish(t, panel, remotetest.Username, "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestEstablishMissingToken(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.OmitLoginToken = true

	_, err := establish(t, panel, remotetest.Username, remotetest.Password)
	assert.ErrorIs(t, err, ErrAuthTokenNotFound)
}

func TestEstablishUnreachableHost(t *testing.T) {
	panel := remotetest.New()
	panel.Close() // kill before dialing

	_, err := establish(t, panel, remotetest.Username, remotetest.Password)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestSessionCookiePersistsAcrossCalls(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	s, err := establish(t, panel, remotetest.Username, remotetest.Password)
	require.NoError(t, err)

	out, err := s.Get(context.Background(), "/access_points")
	require.NoError(t, err)
	require.Equal(t, page.KindRendered, out.Kind)
	assert.Contains(t, out.Body, "Access Points")
}

func TestReauthenticateIssuesNewSession(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	s, err := establish(t, panel, remotetest.Username, remotetest.Password)
	require.NoError(t, err)
	first := s.EstablishedAt

	require.NoError(t, s.Reauthenticate(context.Background()))
	assert.Equal(t, remotetest.Token, s.Token)
	assert.False(t, s.EstablishedAt.Before(first))

	// session must still be usable after the reset
	out, err := s.Get(context.Background(), "/access_points")
	require.NoError(t, err)
	assert.Equal(t, page.KindRendered, out.Kind)
}

func TestRefreshTokenKeepsCookie(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	s, err := establish(t, panel, remotetest.Username, remotetest.Password)
	require.NoError(t, err)

	s.Token = ""
	require.NoError(t, s.RefreshToken(context.Background()))
	assert.Equal(t, remotetest.Token, s.Token)
}

func TestEstablishInvalidBaseURL(t *testing.T) {
	_, err := Establish(context.Background(), Config{BaseURL: "::not-a-url"})
	assert.Error(t, err)
}

func TestWriteBudgetOutlivesReadTimeout(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.CreateDelay = 400 * time.Millisecond

	s, err := Establish(context.Background(), Config{
		BaseURL:      panel.URL(),
		Username:     remotetest.Username,
		Password:     remotetest.Password,
		ReadTimeout:  150 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RatePerSec:   1000,
	})
	require.NoError(t, err)

	// a create that commits slower than the read budget must still succeed
	// within the write budget
	form := url.Values{}
	form.Set("access_point[name]", "slow-commit-gw")
	form.Set("authenticity_token", s.Token)

	out, err := s.PostForm(context.Background(), "/access_points", form)
	require.NoError(t, err)
	assert.Equal(t, page.KindRedirected, out.Kind)
}

func TestCallerDeadlineStillEnforced(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()
	panel.CreateDelay = time.Second

	s, err := Establish(context.Background(), Config{
		BaseURL:      panel.URL(),
		Username:     remotetest.Username,
		Password:     remotetest.Password,
		WriteTimeout: 5 * time.Second,
		RatePerSec:   1000,
	})
	require.NoError(t, err)

	form := url.Values{}
	form.Set("access_point[name]", "never-lands")
	form.Set("authenticity_token", s.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = s.PostForm(ctx, "/access_points", form)
	assert.ErrorIs(t, err, ErrNetworkTimeout)
}

func TestRemoteRoundTripsRecorded(t *testing.T) {
	panel := remotetest.New()
	defer panel.Close()

	m := monitoring.New(prometheus.NewRegistry())
	s, err := Establish(context.Background(), Config{
		BaseURL:    panel.URL(),
		Username:   remotetest.Username,
		Password:   remotetest.Password,
		RatePerSec: 1000,
		Metrics:    m,
	})
	require.NoError(t, err)

	// login is one read (rendered form) and one write (redirect away)
	host := s.BaseHost()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues(host, "read", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues(host, "write", "302")))
}

func TestRemoteErrorsRecorded(t *testing.T) {
	panel := remotetest.New()
	base := panel.URL()
	panel.Close() // kill before dialing
	u, err := url.Parse(base)
	require.NoError(t, err)

	m := monitoring.New(prometheus.NewRegistry())
	_, err = Establish(context.Background(), Config{
		BaseURL:    base,
		Username:   remotetest.Username,
		Password:   remotetest.Password,
		RatePerSec: 1000,
		Metrics:    m,
	})
	require.Error(t, err)

	assert.GreaterOrEqual(t,
		testutil.ToFloat64(m.RemoteErrors.WithLabelValues(u.Host, "read")), 1.0)
}
