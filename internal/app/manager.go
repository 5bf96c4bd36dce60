package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/microhost/internal/shared/paths"
	"github.com/GriffinCanCode/microhost/internal/source"
	"github.com/GriffinCanCode/microhost/internal/source/event"
	"github.com/GriffinCanCode/microhost/internal/source/loader"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var (
	ErrNotFound       = errors.New("app not found")
	ErrNameTaken      = errors.New("app name already in use")
	ErrInvalidRequest = errors.New("invalid mount request")
	ErrNotMounted     = errors.New("app is not mounted")
)

// names end up unquoted in attribute selectors
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// MountRequest describes an app to mount
type MountRequest struct {
	Name     string `json:"name" yaml:"name" binding:"required"`
	URL      string `json:"url" yaml:"url" binding:"required"`
	Prefetch bool   `json:"prefetch" yaml:"prefetch"`
}

// Options configures a Manager
type Options struct {
	Retriever source.Retriever
	Scoper    source.Scoper
	Cache     *source.GlobalCache
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
	// Concurrency bounds in-flight retrievals per batch
	Concurrency int
	// ContainerTag names the element wrapping each app, "micro-app" by default
	ContainerTag string
}

// Manager orchestrates app lifecycle
type Manager struct {
	retriever source.Retriever
	scoper    source.Scoper
	cache     *source.GlobalCache
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	tag       string

	events  *event.Emulator
	links   *source.LinkParser
	scripts *loader.ScriptLoader

	mu   sync.RWMutex
	apps map[string]*Instance
}

// NewManager creates a new app manager. opts.Retriever is required.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scoper := opts.Scoper
	if scoper == nil {
		scoper = source.NopScoper{}
	}
	cache := opts.Cache
	if cache == nil {
		cache = source.NewGlobalCache()
	}
	tag := opts.ContainerTag
	if tag == "" {
		tag = "micro-app"
	}

	events := event.NewEmulator(logger.Named("events"))

	return &Manager{
		retriever: opts.Retriever,
		scoper:    scoper,
		cache:     cache,
		metrics:   opts.Metrics,
		logger:    logger,
		tag:       tag,
		events:    events,
		links: source.NewLinkParser(source.Deps{
			Retriever:   opts.Retriever,
			Scoper:      scoper,
			Events:      events,
			Cache:       cache,
			Metrics:     opts.Metrics,
			Logger:      logger,
			Concurrency: opts.Concurrency,
		}),
		scripts: loader.New(loader.Options{
			Retriever:   opts.Retriever,
			Cache:       cache,
			Metrics:     opts.Metrics,
			Logger:      logger,
			Concurrency: opts.Concurrency,
		}),
		apps: make(map[string]*Instance),
	}
}

// Mount fetches the entry markup of an app, extracts its resources and
// loads them. It returns once every stylesheet and every script fetched
// up front has settled. Failed resources do not fail the mount; an
// unreachable or unusable entry document does, and leaves the instance in
// the error state.
func (m *Manager) Mount(ctx context.Context, req MountRequest) (*Instance, error) {
	if !validName.MatchString(req.Name) {
		return nil, fmt.Errorf("%w: bad name %q", ErrInvalidRequest, req.Name)
	}
	if !paths.IsFetchable(req.URL) {
		return nil, fmt.Errorf("%w: url %q is not absolute http(s)", ErrInvalidRequest, req.URL)
	}

	inst := newInstance(m.tag, req.Name, req.URL, req.Prefetch)

	m.mu.Lock()
	for _, other := range m.apps {
		if other.name == req.Name {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrNameTaken, req.Name)
		}
	}
	m.apps[inst.id.String()] = inst
	m.mu.Unlock()

	logger := m.logger.With(zap.String("app", inst.name), zap.String("id", inst.id.String()))
	logger.Info("mounting app", zap.String("url", inst.url), zap.Bool("prefetch", inst.prefetch))

	if err := m.mount(ctx, inst); err != nil {
		inst.setState(StateError, err)
		m.metrics.RecordMount(err)
		logger.Error("mount failed", zap.Error(err))
		return inst, err
	}

	inst.setState(StateMounted, nil)
	m.metrics.RecordMount(nil)
	logger.Info("app mounted",
		zap.Int("stylesheets", inst.src.Links.Len()),
		zap.Int("scripts", inst.src.Scripts.Len()),
	)
	return inst, nil
}

func (m *Manager) mount(ctx context.Context, inst *Instance) error {
	timer := monitoring.NewTimer(m.metrics, monitoring.KindDocument)
	markup, err := m.retriever.Fetch(ctx, inst.url, inst.name)
	timer.Stop(err)
	if err != nil {
		return fmt.Errorf("fetch entry document: %w", err)
	}
	if err := inst.load(markup); err != nil {
		return fmt.Errorf("load entry document: %w", err)
	}

	doc := inst.doc
	for _, link := range doc.Find("link") {
		m.links.ExtractLink(link, inst)
	}
	for _, script := range doc.Find("script") {
		source.ExtractScript(script, inst)
	}
	for _, style := range doc.Find("style") {
		m.scoper.Scope(style, inst)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	m.links.FetchLinksFromHTML(ctx, inst, inst.head, wg.Done)
	m.scripts.Run(ctx, inst, func(url string, info *source.ScriptInfo, code string) {
		source.CommitScript(m.cache, url, info, code)
	}, wg.Done)
	wg.Wait()
	return nil
}

// InsertLink inserts a link element into a mounted app the way a script
// running inside it would. listener, when set, receives the load or error
// event of the link. It returns the node that ended up in the app head: a
// style element for stylesheets, a comment for dropped links, the link
// itself otherwise.
func (m *Manager) InsertLink(ctx context.Context, id string, link *html.Node, listener event.Listener) (*html.Node, error) {
	inst, ok := m.Instance(id)
	if !ok {
		return nil, ErrNotFound
	}
	if inst.State() != StateMounted {
		return nil, ErrNotMounted
	}

	if listener != nil {
		m.events.On(link, listener)
		inst.track(link)
	}

	res := m.links.ExtractDynamicLink(link, inst.url)
	switch {
	case res.Info != nil:
		style := dom.NewElement("style", html.Attribute{Key: source.OriginHrefAttr, Val: res.URL})
		inst.doc.Append(inst.head, style)
		m.links.ResolveDynamic(ctx, res.URL, res.Info, inst, link, style)
		return style, nil
	case res.ReplaceComment != nil:
		inst.doc.Append(inst.head, res.ReplaceComment)
		return res.ReplaceComment, nil
	default:
		inst.doc.Append(inst.head, link)
		return link, nil
	}
}

// Forget drops the listener InsertLink registered on link. Call it once the
// event arrived or the caller stopped waiting.
func (m *Manager) Forget(id string, link *html.Node) {
	inst, ok := m.Instance(id)
	if !ok {
		return
	}
	if inst.untrack(link) {
		m.events.Off(link)
	}
}

// Get retrieves an app by ID
func (m *Manager) Get(id string) (Info, bool) {
	inst, ok := m.Instance(id)
	if !ok {
		return Info{}, false
	}
	return inst.Info(), true
}

// List returns all apps in mount order, optionally filtered by state
func (m *Manager) List(state *State) []Info {
	m.mu.RLock()
	instances := make([]*Instance, 0, len(m.apps))
	for _, inst := range m.apps {
		instances = append(instances, inst)
	}
	m.mu.RUnlock()

	// IDs are monotonic ULIDs
	sort.Slice(instances, func(a, b int) bool {
		return instances[a].id < instances[b].id
	})

	infos := make([]Info, 0, len(instances))
	for _, inst := range instances {
		if state == nil || inst.State() == *state {
			infos = append(infos, inst.Info())
		}
	}
	return infos
}

// Render serializes the container of an app
func (m *Manager) Render(id string) (string, error) {
	inst, ok := m.Instance(id)
	if !ok {
		return "", ErrNotFound
	}
	return inst.doc.Render(nil)
}

// Unmount drops an app. Its resource maps go with it; the global cache
// keeps whatever the app contributed.
func (m *Manager) Unmount(id string) bool {
	m.mu.Lock()
	inst, ok := m.apps[id]
	if ok {
		delete(m.apps, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}

	for _, n := range inst.untrackAll() {
		m.events.Off(n)
	}
	if inst.State() == StateMounted {
		m.metrics.RecordUnmount()
	}
	inst.setState(StateUnmounted, nil)
	m.logger.Info("app unmounted", zap.String("app", inst.name), zap.String("id", id))
	return true
}

// Stats holds manager statistics
type Stats struct {
	TotalApps   int               `json:"total_apps"`
	MountedApps int               `json:"mounted_apps"`
	LoadingApps int               `json:"loading_apps"`
	FailedApps  int               `json:"failed_apps"`
	Cache       source.CacheStats `json:"cache"`
}

// Stats returns manager statistics
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Cache: m.cache.Stats()}
	for _, inst := range m.apps {
		stats.TotalApps++
		switch inst.State() {
		case StateMounted:
			stats.MountedApps++
		case StateLoading:
			stats.LoadingApps++
		case StateError:
			stats.FailedApps++
		}
	}
	return stats
}

// ResetCache empties the global cache
func (m *Manager) ResetCache() {
	m.cache.Reset()
	m.logger.Info("global cache reset")
}

// Wait blocks until background stylesheet retrievals and deferred events
// have finished
func (m *Manager) Wait() {
	m.links.Wait()
	m.events.Wait()
}

// Instance looks up a live app by ID
func (m *Manager) Instance(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.apps[id]
	return inst, ok
}
