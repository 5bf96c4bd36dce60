package source

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const testBase = "https://example.com/app/index.html"

type testApp struct {
	name     string
	url      string
	prefetch bool
	src      *Source
	doc      *dom.Document
	head     *html.Node
}

func (a *testApp) Name() string            { return a.name }
func (a *testApp) URL() string             { return a.url }
func (a *testApp) IsPrefetch() bool        { return a.prefetch }
func (a *testApp) Source() *Source         { return a.src }
func (a *testApp) Document() *dom.Document { return a.doc }

// newTestApp parses head markup into a fresh app document
func newTestApp(t *testing.T, headMarkup string) *testApp {
	t.Helper()
	doc, err := dom.Parse(strings.NewReader("<html><head>" + headMarkup + "</head><body></body></html>"))
	require.NoError(t, err)

	head := doc.First("head")
	require.NotNil(t, head)

	return &testApp{
		name: "app-1",
		url:  testBase,
		src:  NewSource(),
		doc:  doc,
		head: head,
	}
}

type fakeRetriever struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	calls     []string
}

func newFakeRetriever() *fakeRetriever {
	return &fakeRetriever{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

func (f *fakeRetriever) Fetch(_ context.Context, url, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.failures[url]; ok {
		return "", err
	}
	return f.responses[url], nil
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingEvents records dispatches and holds deferred work until flush
type recordingEvents struct {
	mu       sync.Mutex
	events   []string
	deferred []func()
}

func (r *recordingEvents) DispatchLoad(n *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "load:"+n.Data)
}

func (r *recordingEvents) DispatchError(n *html.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "error:"+n.Data)
}

func (r *recordingEvents) Defer(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deferred = append(r.deferred, fn)
}

func (r *recordingEvents) flush() {
	r.mu.Lock()
	fns := r.deferred
	r.deferred = nil
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (r *recordingEvents) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// markingScoper tags every style it scopes with the app name
type markingScoper struct{}

func (markingScoper) Scope(style *html.Node, app App) *html.Node {
	app.Document().SetAttr(style, "data-scoped", app.Name())
	return style
}

func newTestParser(r *fakeRetriever, events *recordingEvents, cache *GlobalCache) *LinkParser {
	return NewLinkParser(Deps{
		Retriever: r,
		Scoper:    markingScoper{},
		Events:    events,
		Cache:     cache,
	})
}

func render(t *testing.T, doc *dom.Document, n *html.Node) string {
	t.Helper()
	out, err := doc.RenderChildren(n)
	require.NoError(t, err)
	return out
}
