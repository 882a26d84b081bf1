package ident

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gateprov/gateprov/internal/remote/page"
)

func newResolver() *Resolver {
	return New(nil, WithRetryDelay(time.Millisecond))
}

func TestFromPath(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"edit path", "/entities/482/edit", "482", true},
		{"full URL", "https://panel.example.net/entities/482/edit", "482", true},
		{"proxy prefix", "/gw/panel/entities/482/edit", "482", true},
		{"detail URL", "https://panel.example.net/access_points/17", "17", true},
		{"query ignored", "/access_points/93/edit?tab=general", "93", true},
		{"no numeric segment", "/access_points/new", "", false},
		{"too long", "/access_points/9999999999999/edit", "", false},
		{"empty", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := FromPath(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, id)
		})
	}
}

const singleRowListing = `
<html><body><h1>Access Points</h1>
<table>
<tr><th>Name</th><th></th></tr>
<tr><td>branch-gw</td><td><a href="/entities/17/edit">Edit</a></td></tr>
</table></body></html>`

const multiRowListing = `
<html><body>
<table>
<tr><td>branch-gw</td><td><a href="/entities/17/edit">Edit</a></td></tr>
<tr><td>other</td><td><a href="/entities/18/edit">Edit</a></td></tr>
<tr><td>branch-gw</td><td><a href="/entities/42/edit">Edit</a></td></tr>
</table></body></html>`

func TestFromListingSingleRow(t *testing.T) {
	id, ok := FromListing(singleRowListing, "branch-gw")
	require.True(t, ok)
	assert.Equal(t, "17", id)
}

func TestFromListingPrefersLastMatch(t *testing.T) {
	id, ok := FromListing(multiRowListing, "branch-gw")
	require.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestFromListingNoMatch(t *testing.T) {
	_, ok := FromListing(singleRowListing, "missing-name")
	assert.False(t, ok)
}

func TestFromListingEmptyName(t *testing.T) {
	_, ok := FromListing(singleRowListing, "")
	assert.False(t, ok)
}

func TestResolveFromRedirect(t *testing.T) {
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind:     page.KindRedirected,
		Location: "/entities/482/edit",
	}, "branch-gw", nil)

	require.True(t, ok)
	assert.Equal(t, "482", id)
}

func TestResolveFromRenderedListing(t *testing.T) {
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind: page.KindRendered,
		Body: singleRowListing,
	}, "branch-gw", nil)

	require.True(t, ok)
	assert.Equal(t, "17", id)
}

func TestResolveFromRefetchedListing(t *testing.T) {
	calls := 0
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind: page.KindOpaque,
	}, "branch-gw", func(ctx context.Context) (string, error) {
		calls++
		return singleRowListing, nil
	})

	require.True(t, ok)
	assert.Equal(t, "17", id)
	assert.Equal(t, 1, calls)
}

func TestResolveFromEffectiveURL(t *testing.T) {
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind:         page.KindOpaque,
		EffectiveURL: "https://panel.example.net/access_points/77",
	}, "branch-gw", nil)

	require.True(t, ok)
	assert.Equal(t, "77", id)
}

func TestResolveRetriesChainAfterDelay(t *testing.T) {
	calls := 0
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind: page.KindOpaque,
	}, "branch-gw", func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			// first pass: row not committed yet
			return "<html><body><table></table></body></html>", nil
		}
		return singleRowListing, nil
	})

	require.True(t, ok)
	assert.Equal(t, "17", id)
	assert.Equal(t, 2, calls)
}

func TestResolveInconclusive(t *testing.T) {
	id, ok := newResolver().Resolve(context.Background(), page.Outcome{
		Kind: page.KindOpaque,
	}, "branch-gw", nil)

	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestPlausible(t *testing.T) {
	assert.True(t, Plausible("1"))
	assert.True(t, Plausible("482"))
	assert.False(t, Plausible(""))
	assert.False(t, Plausible("17a"))
	assert.False(t, Plausible("1234567890123"))
}
