package server

import (
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/safequote/safequote/internal/ajaxtest"
	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/whttp"
)

type testEnv struct {
	backend *ajaxtest.Backend
	srv     *Server
	ts      *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	backend := ajaxtest.New("n0nce", ajaxtest.DefaultCatalog())
	wp := httptest.NewServer(backend)
	t.Cleanup(wp.Close)

	wc, err := whttp.NewClient(whttp.Options{})
	if err != nil {
		t.Fatalf("whttp.NewClient: %v", err)
	}
	cfg := ajax.Config{AjaxURL: wp.URL + "/wp-admin/admin-ajax.php", Nonce: "n0nce"}
	opts.Backend = ajax.NewClient(cfg, wc)
	opts.Config = cfg

	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{backend: backend, srv: srv, ts: ts, client: &http.Client{Jar: jar}}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readDoc(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readDoc(t, resp)
}

func readDoc(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	return doc
}

func optionValues(doc *goquery.Document, selectID string) []string {
	var out []string
	doc.Find("select#" + selectID + " option").Each(func(_ int, s *goquery.Selection) {
		if v := s.AttrOr("value", ""); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func selected(doc *goquery.Document, selectID string) string {
	return doc.Find("select#" + selectID + " option[selected]").AttrOr("value", "")
}

func (e *testEnv) sessionID(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(e.ts.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == sessionCookie {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestIndex_InitializesSession(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, doc := env.get(t, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if diff := cmp.Diff([]string{"2024", "2023", "2022"}, optionValues(doc, "vehicle-year")); diff != "" {
		t.Fatalf("years (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Ford", "Honda", "Toyota"}, optionValues(doc, "vehicle-make")); diff != "" {
		t.Fatalf("makes (-want +got):\n%s", diff)
	}
	env.sessionID(t)

	// A second visit reuses the session and does not reload options.
	before := len(env.backend.Requests())
	env.get(t, "/")
	if got := len(env.backend.Requests()); got != before {
		t.Fatalf("expected no new backend requests, got %d", got-before)
	}
	if env.srv.sessions.len() != 1 {
		t.Fatalf("expected one session, got %d", env.srv.sessions.len())
	}
}

func TestFilterChanges(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")

	_, doc := env.post(t, "/filters/make", url.Values{"make": {"Toyota"}})
	if selected(doc, "vehicle-make") != "Toyota" {
		t.Fatal("make not selected")
	}
	if diff := cmp.Diff([]string{"2024", "2023"}, optionValues(doc, "vehicle-year")); diff != "" {
		t.Fatalf("years (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Camry", "Corolla", "RAV4"}, optionValues(doc, "vehicle-model")); diff != "" {
		t.Fatalf("models (-want +got):\n%s", diff)
	}

	_, doc = env.post(t, "/filters/model", url.Values{"model": {"Camry"}})
	if selected(doc, "vehicle-model") != "Camry" {
		t.Fatal("model not selected")
	}

	_, doc = env.post(t, "/filters/year", url.Values{"year": {"2023"}})
	if selected(doc, "vehicle-model") != "" {
		t.Fatal("year change must reset the model")
	}
	if diff := cmp.Diff([]string{"Corolla"}, optionValues(doc, "vehicle-model")); diff != "" {
		t.Fatalf("models (-want +got):\n%s", diff)
	}
	if _, ok := env.backend.LastRequest(ajax.ACTION_SEARCH_VEHICLES); ok {
		t.Fatal("filter changes must not search")
	}
}

func TestModelWithoutMake(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")

	resp, _ := env.post(t, "/filters/model", url.Values{"model": {"Camry"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestRatingSlider(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, doc := env.post(t, "/filters/rating", url.Values{"minSafetyRating": {"9"}})
	if got := doc.Find("#rating-label").Text(); got != "5/5" {
		t.Fatalf("label %q", got)
	}
	resp, _ := env.post(t, "/filters/rating", url.Values{"minSafetyRating": {"lots"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestSearch(t *testing.T) {
	var mu sync.Mutex
	var recorded []events.SearchCompleted
	env := newTestEnv(t, Options{OnSearch: func(ev events.SearchCompleted) {
		mu.Lock()
		defer mu.Unlock()
		recorded = append(recorded, ev)
	}})
	env.get(t, "/")
	env.post(t, "/filters/make", url.Values{"make": {"Honda"}})

	_, doc := env.post(t, "/search", nil)
	var titles []string
	doc.Find(".vehicle-card .vehicle-title").Each(func(_ int, s *goquery.Selection) { titles = append(titles, s.Text()) })
	if diff := cmp.Diff([]string{"2023 Honda Civic", "2024 Honda CR-V"}, titles); diff != "" {
		t.Fatalf("titles (-want +got):\n%s", diff)
	}
	if got := doc.Find("#results-count").Text(); got != "2 vehicles found" {
		t.Fatalf("count %q", got)
	}
	if got := doc.Find("#notifications .notification-success").Text(); got != "2 vehicles found" {
		t.Fatalf("notification %q", got)
	}

	req, _ := env.backend.LastRequest(ajax.ACTION_SEARCH_VEHICLES)
	if req.Params.Get("make") != "Honda" || req.Params.Has("year") || req.Params.Has("minSafetyRating") {
		t.Fatalf("unexpected search params %v", req.Params)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 || recorded[0].Make != "Honda" || len(recorded[0].Vehicles) != 2 {
		t.Fatalf("OnSearch got %#v", recorded)
	}
}

func TestSearchFailureKeepsResults(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")
	env.post(t, "/search", nil)

	env.backend.FailAction(ajax.ACTION_SEARCH_VEHICLES, true)
	_, doc := env.post(t, "/search", nil)
	if n := doc.Find(".vehicle-card").Length(); n != 6 {
		t.Fatalf("previous results should stay, got %d cards", n)
	}
	if doc.Find("#notifications .notification-error").Length() != 1 {
		t.Fatal("expected an error notification")
	}
}

func TestReset(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")
	env.post(t, "/filters/year", url.Values{"year": {"2024"}})
	env.post(t, "/filters/make", url.Values{"make": {"Toyota"}})
	env.post(t, "/filters/rating", url.Values{"minSafetyRating": {"4"}})

	_, doc := env.post(t, "/reset", nil)
	for _, id := range []string{"vehicle-year", "vehicle-make", "vehicle-model"} {
		if got := selected(doc, id); got != "" {
			t.Fatalf("%s still selected: %q", id, got)
		}
	}
	if got := doc.Find("#rating-label").Text(); got != "0/5" {
		t.Fatalf("rating label %q", got)
	}
	if got := doc.Find("#results-count").Text(); got != "6 vehicles found" {
		t.Fatalf("count %q", got)
	}
	req, _ := env.backend.LastRequest(ajax.ACTION_SEARCH_VEHICLES)
	for _, k := range []string{"year", "make", "model", "minSafetyRating"} {
		if req.Params.Has(k) {
			t.Fatalf("reset search carried %s", k)
		}
	}
}

func TestResetWithFailingMakesStillReportsResults(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")
	env.post(t, "/filters/make", url.Values{"make": {"Toyota"}})

	env.backend.FailAction(ajax.ACTION_GET_MAKES, true)
	_, doc := env.post(t, "/reset", nil)
	if got := doc.Find("#results-count").Text(); got != "6 vehicles found" {
		t.Fatalf("count %q", got)
	}
	if doc.Find("#notifications .notification-error").Length() != 0 {
		t.Fatal("a make reload failure must not show a search error")
	}
	if got := doc.Find("#notifications .notification-success").Text(); got != "6 vehicles found" {
		t.Fatalf("notification %q", got)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.get(t, "/")
	id := env.sessionID(t)

	wsURL := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Cookie": {sessionCookie + "=" + id}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sess, ok := env.srv.sessions.get(id)
	if !ok {
		t.Fatal("session vanished")
	}
	deadline := time.Now().Add(2 * time.Second)
	for sess.bus.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	env.post(t, "/filters/make", url.Values{"make": {"Ford"}})
	env.post(t, "/search", nil)

	var msg struct {
		Type string                 `json:"type"`
		Data events.SearchCompleted `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != events.TYPE_SEARCH_COMPLETED {
		t.Fatalf("type %q", msg.Type)
	}
	if msg.Data.Make != "Ford" || len(msg.Data.Vehicles) != 1 || msg.Data.Vehicles[0].Model != "F-150" {
		t.Fatalf("unexpected event %#v", msg.Data)
	}
}

func TestEventsRequiresSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	resp, err := http.Get(env.ts.URL + "/events")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestLoginAndHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, doc := env.get(t, "/login")
	if !strings.Contains(doc.Find("main").Text(), "coming soon") {
		t.Fatalf("login page %q", doc.Find("main").Text())
	}

	resp, doc := env.get(t, "/health")
	if resp.StatusCode != http.StatusOK || doc.Text() != "ok" {
		t.Fatalf("health %d %q", resp.StatusCode, doc.Text())
	}
}

func TestSessionExpiry(t *testing.T) {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	store := newSessionStore(time.Hour, func(id string) *session { return &session{id: id} })
	store.now = func() time.Time { return now }

	sess := store.start()
	now = now.Add(30 * time.Minute)
	if _, ok := store.get(sess.id); !ok {
		t.Fatal("session expired too early")
	}
	now = now.Add(61 * time.Minute)
	if _, ok := store.get(sess.id); ok {
		t.Fatal("idle session should have expired")
	}
	if store.len() != 0 {
		t.Fatalf("expected empty store, got %d", store.len())
	}
}
