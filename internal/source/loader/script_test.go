package loader

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mainJS   = "https://example.com/app/main.js"
	brokenJS = "https://example.com/app/broken.js"
	lazyJS   = "https://example.com/app/lazy.js"
	asyncJS  = "https://example.com/app/async.js"
)

type fakeApp struct {
	prefetch bool
	src      *source.Source
}

func (a *fakeApp) Name() string            { return "app-1" }
func (a *fakeApp) URL() string             { return "https://example.com/app/" }
func (a *fakeApp) IsPrefetch() bool        { return a.prefetch }
func (a *fakeApp) Source() *source.Source  { return a.src }
func (a *fakeApp) Document() *dom.Document { return nil }

type countingRetriever struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *countingRetriever) Fetch(_ context.Context, url, appName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[url]++
	if strings.Contains(url, "broken") {
		return "", errors.New("502 bad gateway")
	}
	return "// " + url + " for " + appName, nil
}

func (r *countingRetriever) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *countingRetriever) count(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[url]
}

type batchRecorder struct {
	mu    sync.Mutex
	items map[string]string
	done  chan struct{}
	// item callbacks seen after done fired
	late int
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{items: make(map[string]string), done: make(chan struct{})}
}

func (b *batchRecorder) onItem(url string, _ *source.ScriptInfo, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
		b.late++
	default:
	}
	b.items[url] = code
}

func (b *batchRecorder) onDone() { close(b.done) }

func (b *batchRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-b.done:
	case <-time.After(time.Second):
		t.Fatal("batch never completed")
	}
}

func scripts(entries map[string]*source.ScriptInfo) *source.Source {
	src := source.NewSource()
	for url, info := range entries {
		src.Scripts.Set(url, info)
	}
	return src
}

func inlineScript(code string) *source.ScriptInfo {
	info := &source.ScriptInfo{}
	info.SetCode(code)
	return info
}

func TestRunFetchesBlockingScripts(t *testing.T) {
	r := &countingRetriever{}
	l := New(Options{Retriever: r})
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{
		mainJS:             {IsExternal: true},
		"inline_01HZZZZZZ": inlineScript("console.log(1)"),
	})}
	b := newBatchRecorder()

	l.Run(context.Background(), app, b.onItem, b.onDone)
	b.wait(t)

	assert.Equal(t, 1, r.total())
	assert.Equal(t, map[string]string{mainJS: "// " + mainJS + " for app-1"}, b.items)
}

func TestRunPrefetchFetchesEverything(t *testing.T) {
	r := &countingRetriever{}
	l := New(Options{Retriever: r})
	app := &fakeApp{prefetch: true, src: scripts(map[string]*source.ScriptInfo{
		mainJS:  {IsExternal: true},
		lazyJS:  {IsExternal: true, Defer: true},
		asyncJS: {IsExternal: true, Async: true},
	})}
	b := newBatchRecorder()

	l.Run(context.Background(), app, b.onItem, b.onDone)
	b.wait(t)

	assert.Equal(t, 3, r.total())
	assert.Len(t, b.items, 3)
}

func TestRunSkipsDeferredAndAsyncOutsidePrefetch(t *testing.T) {
	r := &countingRetriever{}
	l := New(Options{Retriever: r})
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{
		lazyJS:  {IsExternal: true, Defer: true},
		asyncJS: {IsExternal: true, Async: true},
	})}

	done := false
	l.Run(context.Background(), app, func(string, *source.ScriptInfo, string) {
		t.Fatal("no item expected")
	}, func() { done = true })

	// nothing launched: completion is synchronous
	assert.True(t, done)
	assert.Zero(t, r.total())
}

func TestRunFailureDoesNotStopSiblings(t *testing.T) {
	r := &countingRetriever{}
	l := New(Options{Retriever: r, Concurrency: 1})
	app := &fakeApp{prefetch: true, src: scripts(map[string]*source.ScriptInfo{
		mainJS:   {IsExternal: true},
		brokenJS: {IsExternal: true},
		lazyJS:   {IsExternal: true, Defer: true},
	})}
	b := newBatchRecorder()

	l.Run(context.Background(), app, b.onItem, b.onDone)
	b.wait(t)

	assert.Equal(t, 3, r.total())
	assert.Len(t, b.items, 2)
	assert.NotContains(t, b.items, brokenJS)
	assert.Zero(t, b.late)
}

func TestRunInlineOnlyCompletesImmediately(t *testing.T) {
	r := &countingRetriever{}
	l := New(Options{Retriever: r})
	app := &fakeApp{prefetch: true, src: scripts(map[string]*source.ScriptInfo{
		"inline_1": inlineScript("a()"),
		"inline_2": inlineScript("b()"),
	})}

	done := false
	l.Run(context.Background(), app, func(string, *source.ScriptInfo, string) {
		t.Fatal("no item expected")
	}, func() { done = true })

	assert.True(t, done)
	assert.Zero(t, r.total())
}

func TestRunUsesGlobalCacheSilently(t *testing.T) {
	r := &countingRetriever{}
	cache := source.NewGlobalCache()
	cache.Scripts.SetIfAbsent(mainJS, "cached()")
	l := New(Options{Retriever: r, Cache: cache})

	info := &source.ScriptInfo{IsExternal: true}
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{mainJS: info})}

	done := false
	l.Run(context.Background(), app, func(string, *source.ScriptInfo, string) {
		t.Fatal("cache hits produce no item callback")
	}, func() { done = true })

	assert.True(t, done)
	assert.Zero(t, r.count(mainJS))
	assert.Equal(t, "cached()", info.Code())
}

func TestRunTreatsEmptyCachedTextAsMiss(t *testing.T) {
	r := &countingRetriever{}
	cache := source.NewGlobalCache()
	cache.Scripts.SetIfAbsent(mainJS, "")
	l := New(Options{Retriever: r, Cache: cache})
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{mainJS: {IsExternal: true}})}
	b := newBatchRecorder()

	l.Run(context.Background(), app, b.onItem, b.onDone)
	b.wait(t)

	assert.Equal(t, 1, r.count(mainJS))
}

func TestRunNeverWritesGlobalCache(t *testing.T) {
	r := &countingRetriever{}
	cache := source.NewGlobalCache()
	l := New(Options{Retriever: r, Cache: cache})
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{
		mainJS: {IsExternal: true, IsGlobal: true},
	})}
	b := newBatchRecorder()

	l.Run(context.Background(), app, b.onItem, b.onDone)
	b.wait(t)

	assert.Zero(t, cache.Scripts.Len())
}

func TestRunWithCommitScriptPublishesGlobals(t *testing.T) {
	r := &countingRetriever{}
	cache := source.NewGlobalCache()
	l := New(Options{Retriever: r, Cache: cache})

	global := &source.ScriptInfo{IsExternal: true, IsGlobal: true}
	local := &source.ScriptInfo{IsExternal: true}
	app := &fakeApp{src: scripts(map[string]*source.ScriptInfo{mainJS: global, "https://example.com/app/local.js": local})}

	done := make(chan struct{})
	l.Run(context.Background(), app, func(url string, info *source.ScriptInfo, code string) {
		source.CommitScript(cache, url, info, code)
	}, func() { close(done) })
	<-done

	assert.True(t, cache.Scripts.Has(mainJS))
	assert.Equal(t, 1, cache.Scripts.Len())
	require.True(t, global.Loaded())

	// a second app now hits the cache
	second := &source.ScriptInfo{IsExternal: true}
	other := &fakeApp{src: scripts(map[string]*source.ScriptInfo{mainJS: second})}
	finished := false
	l.Run(context.Background(), other, func(string, *source.ScriptInfo, string) {}, func() { finished = true })

	assert.True(t, finished)
	assert.Equal(t, 1, r.count(mainJS))
	assert.Equal(t, global.Code(), second.Code())
}
