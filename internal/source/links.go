package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/microhost/internal/shared/paths"
	"github.com/GriffinCanCode/microhost/internal/source/event"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	// GlobalAttr on a link or script shares its text through the global cache
	GlobalAttr = "global"
	// OriginHrefAttr records where a materialized style came from
	OriginHrefAttr = "data-origin-href"
)

// rels whose links are dropped instead of loaded
var nonMaterializingRels = map[string]struct{}{
	"prefetch":         {},
	"preload":          {},
	"prerender":        {},
	"icon":             {},
	"apple-touch-icon": {},
}

// Deps are the collaborators of the parsers and loaders
type Deps struct {
	Retriever Retriever
	Scoper    Scoper
	Events    Dispatcher
	Cache     *GlobalCache
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	// Concurrency bounds in-flight retrievals per batch, 0 = unbounded
	Concurrency int
}

// withDefaults fills optional collaborators
func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Scoper == nil {
		d.Scoper = NopScoper{}
	}
	if d.Events == nil {
		d.Events = event.NewEmulator(d.Logger)
	}
	if d.Cache == nil {
		d.Cache = NewGlobalCache()
	}
	return d
}

// DynamicLink is the outcome of inspecting a link inserted after the initial
// parse. At most one of Info and ReplaceComment is set; neither means the
// link is kept as is.
type DynamicLink struct {
	URL            string
	Info           *LinkInfo
	ReplaceComment *html.Node
}

// LinkParser turns stylesheet links into descriptors and puts fetched
// stylesheets back into app documents.
type LinkParser struct {
	deps   Deps
	logger *zap.Logger

	pending sync.WaitGroup
}

// NewLinkParser creates a parser. deps.Retriever is required.
func NewLinkParser(deps Deps) *LinkParser {
	deps = deps.withDefaults()
	return &LinkParser{
		deps:   deps,
		logger: deps.Logger.Named("links"),
	}
}

// ExtractLink handles a link found in an app's initial markup.
//
// A stylesheet is registered in the app's link map and replaced by a
// placeholder comment, which is returned. Links with a non-materializing rel
// are removed. Any other link with an href keeps its place with the href made
// absolute. Links without href are left alone.
func (p *LinkParser) ExtractLink(link *html.Node, app App) *html.Node {
	rel, href := linkAttrs(link)
	doc := app.Document()

	switch {
	case rel == "stylesheet" && href != "":
		url := paths.ToAbsolute(href, app.URL())
		placeholder := dom.NewComment(fmt.Sprintf("link element with href=%s move to micro-app-head as style element", url))
		app.Source().Links.Set(url, NewLinkInfo(dom.HasAttr(link, GlobalAttr), placeholder))
		doc.Replace(placeholder, link)
		return placeholder
	case isNonMaterializing(rel):
		doc.Remove(link)
	case href != "":
		// dns-prefetch, preconnect, modulepreload, search ...
		doc.SetAttr(link, "href", paths.ToAbsolute(href, app.URL()))
	}
	return nil
}

// ExtractDynamicLink inspects a link that is about to be inserted into an
// app. It does not touch any resource map; link is expected to be detached.
func (p *LinkParser) ExtractDynamicLink(link *html.Node, baseURL string) DynamicLink {
	rel, href := linkAttrs(link)
	if href == "" {
		return DynamicLink{}
	}

	switch {
	case rel == "stylesheet":
		return DynamicLink{
			URL:  paths.ToAbsolute(href, baseURL),
			Info: NewLinkInfo(dom.HasAttr(link, GlobalAttr), nil),
		}
	case isNonMaterializing(rel):
		return DynamicLink{
			ReplaceComment: dom.NewComment(fmt.Sprintf("link element with rel=%s & href=%s removed by micro-app", rel, href)),
		}
	default:
		dom.SetAttr(link, "href", paths.ToAbsolute(href, baseURL))
		return DynamicLink{}
	}
}

// MaterializeLoaded puts a fetched stylesheet into the app document. The
// new style element replaces the descriptor's placeholder, or is appended to
// head when the placeholder is gone.
func (p *LinkParser) MaterializeLoaded(url string, info *LinkInfo, code string, head *html.Node, app App) {
	if info.IsGlobal {
		p.storeGlobal(url, code)
	}

	style := dom.NewElement("style", html.Attribute{Key: OriginHrefAttr, Val: url})
	dom.SetText(style, code)
	style = p.deps.Scoper.Scope(style, app)

	app.Document().ReplaceOrAppend(style, info.takePlaceholder(), head)
	info.SetCode(code)
}

// ResolveDynamic fills replaceStyle, the style element standing in for a
// dynamically inserted stylesheet link.
//
// The app's own link map is consulted first, then the global cache; both
// fill replaceStyle before returning and fire load on originLink later. On a
// miss the stylesheet is fetched in the background: success fills the
// descriptor, the app map, the global cache (global links only) and
// replaceStyle, then fires load; failure fires error and changes nothing.
// Cancelling ctx does not abort a retrieval once launched.
//
// When the scoper hands back a different node, it takes replaceStyle's place
// in the document.
func (p *LinkParser) ResolveDynamic(ctx context.Context, url string, info *LinkInfo, app App, originLink, replaceStyle *html.Node) {
	src := app.Source()
	doc := app.Document()
	metrics := p.deps.Metrics

	if cached, ok := src.Links.Get(url); ok {
		metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierApp, true)
		doc.SetText(replaceStyle, cached.Code())
		p.scopeInPlace(replaceStyle, app)
		p.deferLoad(originLink)
		return
	}
	metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierApp, false)

	if code, ok := p.deps.Cache.Links.Get(url); ok {
		metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierGlobal, true)
		info.SetCode(code)
		src.Links.Set(url, info)
		doc.SetText(replaceStyle, code)
		p.scopeInPlace(replaceStyle, app)
		p.deferLoad(originLink)
		return
	}
	metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierGlobal, false)

	// a launched retrieval runs to settlement whatever happens to the caller
	ctx = context.WithoutCancel(ctx)

	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		code, err := p.fetch(ctx, url, app.Name())
		if err != nil {
			p.logger.Error("failed to fetch dynamic stylesheet",
				zap.String("app", app.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			p.deps.Events.DispatchError(originLink)
			return
		}

		info.SetCode(code)
		src.Links.Set(url, info)
		if info.IsGlobal {
			p.storeGlobal(url, code)
		}
		doc.SetText(replaceStyle, code)
		p.scopeInPlace(replaceStyle, app)
		p.deps.Events.DispatchLoad(originLink)
	}()
}

// FetchLinksFromHTML loads every extracted stylesheet of app that still has
// its placeholder. Global cache hits skip the network. onDone runs once
// after every stylesheet settled, before returning when none is pending.
func (p *LinkParser) FetchLinksFromHTML(ctx context.Context, app App, head *html.Node, onDone func()) {
	var tasks []Task[*LinkInfo]

	for _, e := range app.Source().Links.Entries() {
		if e.Info.Placeholder() == nil {
			continue
		}
		if code, ok := p.deps.Cache.Links.Get(e.URL); ok {
			p.deps.Metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierGlobal, true)
			p.MaterializeLoaded(e.URL, e.Info, code, head, app)
			continue
		}
		p.deps.Metrics.RecordCacheLookup(monitoring.KindStylesheet, monitoring.TierGlobal, false)
		tasks = append(tasks, Task[*LinkInfo]{URL: e.URL, Info: e.Info})
	}

	Stream(ctx, p.deps.Concurrency, tasks,
		func(ctx context.Context, url string) (string, error) {
			return p.fetch(ctx, url, app.Name())
		},
		func(t Task[*LinkInfo], code string) {
			p.MaterializeLoaded(t.URL, t.Info, code, head, app)
		},
		func(t Task[*LinkInfo], err error) {
			p.logger.Error("failed to fetch stylesheet",
				zap.String("app", app.Name()),
				zap.String("url", t.URL),
				zap.Error(err),
			)
		},
		onDone,
	)
}

// Wait blocks until every background retrieval started by ResolveDynamic
// has settled
func (p *LinkParser) Wait() {
	p.pending.Wait()
}

func (p *LinkParser) fetch(ctx context.Context, url, appName string) (string, error) {
	timer := monitoring.NewTimer(p.deps.Metrics, monitoring.KindStylesheet)
	code, err := p.deps.Retriever.Fetch(ctx, url, appName)
	timer.Stop(err)
	return code, err
}

func (p *LinkParser) storeGlobal(url, code string) {
	stored := p.deps.Cache.Links.SetIfAbsent(url, code)
	p.deps.Metrics.RecordCacheWrite(monitoring.KindStylesheet, stored)
}

// scopeInPlace scopes style and swaps in the scoper's result when it is a
// different node
func (p *LinkParser) scopeInPlace(style *html.Node, app App) {
	scoped := p.deps.Scoper.Scope(style, app)
	if scoped != nil && scoped != style {
		app.Document().Replace(scoped, style)
	}
}

func (p *LinkParser) deferLoad(n *html.Node) {
	events := p.deps.Events
	events.Defer(func() { events.DispatchLoad(n) })
}

func linkAttrs(link *html.Node) (rel, href string) {
	rel, _ = dom.Attr(link, "rel")
	href, _ = dom.Attr(link, "href")
	return strings.ToLower(strings.TrimSpace(rel)), strings.TrimSpace(href)
}

func isNonMaterializing(rel string) bool {
	_, ok := nonMaterializingRels[rel]
	return ok
}
