package source

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"golang.org/x/net/html"
)

// Retriever fetches the text behind an absolute URL on behalf of an app
type Retriever interface {
	Fetch(ctx context.Context, url, appName string) (string, error)
}

// RetrieverFunc adapts a function to Retriever
type RetrieverFunc func(ctx context.Context, url, appName string) (string, error)

func (f RetrieverFunc) Fetch(ctx context.Context, url, appName string) (string, error) {
	return f(ctx, url, appName)
}

// Scoper rewrites a style element so its rules only apply inside app. It may
// modify style in place and returns the node to insert; callers put a
// returned node that differs from style in its place.
type Scoper interface {
	Scope(style *html.Node, app App) *html.Node
}

// NopScoper leaves styles untouched
type NopScoper struct{}

func (NopScoper) Scope(style *html.Node, _ App) *html.Node { return style }

// Dispatcher fires synthetic resource events
type Dispatcher interface {
	DispatchLoad(n *html.Node)
	DispatchError(n *html.Node)
	// Defer runs fn after the caller has returned
	Defer(fn func())
}

// App is the view of an application instance the loaders need
type App interface {
	Name() string
	URL() string
	IsPrefetch() bool
	Source() *Source
	Document() *dom.Document
}

// ============================================================================
// Descriptors
// ============================================================================

// LinkInfo tracks one stylesheet reference. Code is set once; the
// placeholder stays until the content has been materialized.
type LinkInfo struct {
	IsGlobal bool

	mu          sync.Mutex
	code        string
	loaded      bool
	placeholder *html.Node
}

// NewLinkInfo creates an empty stylesheet descriptor
func NewLinkInfo(isGlobal bool, placeholder *html.Node) *LinkInfo {
	return &LinkInfo{IsGlobal: isGlobal, placeholder: placeholder}
}

// Code returns the stylesheet text, empty until loaded
func (i *LinkInfo) Code() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.code
}

// Loaded reports whether code has been set
func (i *LinkInfo) Loaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loaded
}

// SetCode stores code unless code was already set. It reports whether the
// write took effect.
func (i *LinkInfo) SetCode(code string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded {
		return false
	}
	i.code = code
	i.loaded = true
	return true
}

// Placeholder returns the marker standing in for the reference, or nil
func (i *LinkInfo) Placeholder() *html.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.placeholder
}

func (i *LinkInfo) takePlaceholder() *html.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	p := i.placeholder
	i.placeholder = nil
	return p
}

// ScriptInfo tracks one script reference
type ScriptInfo struct {
	IsExternal bool
	IsDynamic  bool
	Async      bool
	Defer      bool
	Module     bool
	// IsGlobal marks scripts whose text may be shared through the global cache
	IsGlobal bool

	mu     sync.Mutex
	code   string
	loaded bool
}

// Code returns the script text, empty until loaded
func (i *ScriptInfo) Code() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.code
}

// Loaded reports whether code has been set
func (i *ScriptInfo) Loaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loaded
}

// SetCode stores code unless code was already set
func (i *ScriptInfo) SetCode(code string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded {
		return false
	}
	i.code = code
	i.loaded = true
	return true
}

// ============================================================================
// Resource maps
// ============================================================================

// Entry is one URL/descriptor pair
type Entry[T any] struct {
	URL  string
	Info T
}

// ResourceMap maps absolute URLs to descriptors. Iteration follows first
// insertion order.
type ResourceMap[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	order   []string
}

// NewResourceMap creates an empty map
func NewResourceMap[T any]() *ResourceMap[T] {
	return &ResourceMap[T]{entries: make(map[string]T)}
}

// Get returns the descriptor registered for url
func (m *ResourceMap[T]) Get(url string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.entries[url]
	return info, ok
}

// Has reports whether url is registered
func (m *ResourceMap[T]) Has(url string) bool {
	_, ok := m.Get(url)
	return ok
}

// Set registers info under url, replacing any previous descriptor
func (m *ResourceMap[T]) Set(url string, info T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[url]; !ok {
		m.order = append(m.order, url)
	}
	m.entries[url] = info
}

// Len returns the number of registered URLs
func (m *ResourceMap[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a snapshot of all pairs
func (m *ResourceMap[T]) Entries() []Entry[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry[T], 0, len(m.order))
	for _, url := range m.order {
		out = append(out, Entry[T]{URL: url, Info: m.entries[url]})
	}
	return out
}

// Source holds the resource maps of one application instance
type Source struct {
	Links   *ResourceMap[*LinkInfo]
	Scripts *ResourceMap[*ScriptInfo]
}

// NewSource creates empty resource maps
func NewSource() *Source {
	return &Source{
		Links:   NewResourceMap[*LinkInfo](),
		Scripts: NewResourceMap[*ScriptInfo](),
	}
}
