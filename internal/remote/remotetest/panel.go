// Package remotetest provides an in-process fake of the legacy admin panel
// for tests: cookie-gated pages, an anti-forgery token with a script decoy,
// and configurable create/update/attach behavior.
package remotetest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// Token the fake panel embeds and accepts.
	Token = "c3J2VG9rZW5WYWx1ZUZvclRlc3RzXzAxMjM0NTY3ODk"
	// SessionCookie is the cookie name the fake panel issues.
	SessionCookie = "_panel_session"

	Username = "admin"
	Password = "hunter2"
)

// Submission records one write the panel received.
type Submission struct {
	Path string
	Form map[string]string
}

// Panel is a scripted stand-in for one remote admin panel.
type Panel struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextID      int
	entities    map[string]string // id -> name
	submissions []Submission

	// Behavior knobs
	CreateResponse  string        // "redirect" (default), "listing", "opaque"
	ProxyPrefix     string        // e.g. "/gw/panel" prepended to redirect Locations
	CreateDelay     time.Duration // server-side commit time on create
	FailUpdates     bool
	FailAttachments map[string]bool // child ref -> fail
	HideNames       map[string]bool // names omitted from listings (slow commit)
	OmitLoginToken  bool
	BrokenLogin     bool // reject even good credentials
}

// New starts a fake panel.
func New() *Panel {
	p := &Panel{
		nextID:          100,
		entities:        make(map[string]string),
		FailAttachments: make(map[string]bool),
		HideNames:       make(map[string]bool),
		CreateResponse:  "redirect",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", p.handleLogin)
	mux.HandleFunc("/access_points", p.handleCollection)
	mux.HandleFunc("/access_points/new", p.handleNewForm)
	mux.HandleFunc("/access_points/", p.handleMember)
	mux.HandleFunc("/", p.handleDashboard)
	p.Server = httptest.NewServer(mux)
	return p
}

// Close shuts the panel down.
func (p *Panel) Close() { p.Server.Close() }

// URL returns the panel base URL.
func (p *Panel) URL() string { return p.Server.URL }

// Seed registers an existing entity.
func (p *Panel) Seed(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entities[id] = name
}

// Submissions returns all recorded writes in order.
func (p *Panel) Submissions() []Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Submission, len(p.submissions))
	copy(out, p.submissions)
	return out
}

// SubmissionsTo returns recorded writes for one path.
func (p *Panel) SubmissionsTo(path string) []Submission {
	var out []Submission
	for _, s := range p.Submissions() {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out
}

func (p *Panel) record(r *http.Request) Submission {
	_ = r.ParseForm()
	form := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	sub := Submission{Path: r.URL.Path, Form: form}
	p.mu.Lock()
	p.submissions = append(p.submissions, sub)
	p.mu.Unlock()
	return sub
}

func (p *Panel) authed(r *http.Request) bool {
	c, err := r.Cookie(SessionCookie)
	return err == nil && c.Value != ""
}

func (p *Panel) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		tokenField := fmt.Sprintf(
			`<input type="hidden" name="authenticity_token" value="%s">`, Token)
		if p.OmitLoginToken {
			tokenField = ""
		}
		writeHTML(w, fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Panel Login</title>
<script>var authenticity_token = computeToken("boot") + window.salt;</script>
</head><body>
<form action="/login" method="post">%s
<input type="text" name="username"><input type="password" name="password">
</form></body></html>`, tokenField))
		return
	}

	sub := p.record(r)
	ok := !p.BrokenLogin &&
		sub.Form["username"] == Username &&
		sub.Form["password"] == Password &&
		sub.Form["authenticity_token"] == Token
	if !ok {
		writeHTML(w, `<html><body><form action="/login" method="post">
<p class="error">Invalid credentials</p></form></body></html>`)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "sess-ok", Path: "/"})
	w.Header().Set("Location", "/dashboard")
	w.WriteHeader(http.StatusFound)
}

func (p *Panel) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !p.authed(r) {
		redirectToLogin(w)
		return
	}
	writeHTML(w, `<html><body><h1>Dashboard</h1></body></html>`)
}

func (p *Panel) handleNewForm(w http.ResponseWriter, r *http.Request) {
	if !p.authed(r) {
		redirectToLogin(w)
		return
	}
	writeHTML(w, fmt.Sprintf(`<html><head><title>New Access Point</title></head>
<body><h1>Access Points</h1>
<form action="/access_points" method="post">
<input type="hidden" name="authenticity_token" value="%s">
<input type="text" name="access_point[name]">
</form></body></html>`, Token))
}

func (p *Panel) handleCollection(w http.ResponseWriter, r *http.Request) {
	if !p.authed(r) {
		redirectToLogin(w)
		return
	}

	if r.Method == http.MethodGet {
		writeHTML(w, p.listingHTML())
		return
	}

	sub := p.record(r)
	if sub.Form["authenticity_token"] != Token {
		w.WriteHeader(http.StatusUnprocessableEntity)
		writeHTML(w, `<html><body><p class="error">Invalid token</p></body></html>`)
		return
	}
	if p.CreateDelay > 0 {
		time.Sleep(p.CreateDelay)
	}

	name := sub.Form["access_point[name]"]
	p.mu.Lock()
	p.nextID++
	id := fmt.Sprintf("%d", p.nextID)
	p.entities[id] = name
	p.mu.Unlock()

	switch p.CreateResponse {
	case "listing":
		writeHTML(w, p.listingHTML())
	case "opaque":
		w.WriteHeader(http.StatusOK)
	default:
		w.Header().Set("Location",
			fmt.Sprintf("%s/access_points/%s/edit", p.ProxyPrefix, id))
		w.WriteHeader(http.StatusFound)
	}
}

func (p *Panel) handleMember(w http.ResponseWriter, r *http.Request) {
	if !p.authed(r) {
		redirectToLogin(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/access_points/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	// Child attachment: POST /access_points/{id}/profiles
	if len(parts) == 2 && parts[1] == "profiles" && r.Method == http.MethodPost {
		sub := p.record(r)
		ref := sub.Form["profile_binding[profile_id]"]
		if p.FailAttachments[ref] {
			w.WriteHeader(http.StatusUnprocessableEntity)
			writeHTML(w, `<html><body><p class="error">profile rejected</p></body></html>`)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/access_points/%s/edit", id))
		w.WriteHeader(http.StatusFound)
		return
	}

	// Full update: POST /access_points/{id} with _method override
	if len(parts) == 1 && r.Method == http.MethodPost {
		p.record(r)
		if p.FailUpdates {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/access_points/%s/edit", id))
		w.WriteHeader(http.StatusFound)
		return
	}

	// Edit page
	writeHTML(w, fmt.Sprintf(`<html><head><title>Edit Access Point</title></head>
<body><h1>Access Points</h1>
<form action="/access_points/%s" method="post">
<input type="hidden" name="authenticity_token" value="%s">
</form></body></html>`, id, Token))
}

func (p *Panel) listingHTML() string {
	p.mu.Lock()
	ids := make([]string, 0, len(p.entities))
	for id := range p.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows strings.Builder
	for _, id := range ids {
		if p.HideNames[p.entities[id]] {
			continue
		}
		fmt.Fprintf(&rows,
			`<tr><td>%s</td><td><a href="/access_points/%s/edit">Edit</a></td></tr>`+"\n",
			p.entities[id], id)
	}
	p.mu.Unlock()

	return fmt.Sprintf(`<html><head><title>Access Points</title></head>
<body><h1>Access Points</h1>
<table class="index">
<tr><th>Name</th><th></th></tr>
%s</table></body></html>`, rows.String())
}

func redirectToLogin(w http.ResponseWriter) {
	w.Header().Set("Location", "/login")
	w.WriteHeader(http.StatusFound)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
