package source

import "sync"

// TextStore maps absolute URLs to resource text. Entries are written at most
// once: the first successful write for a URL wins and is never replaced.
type TextStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTextStore creates an empty store
func NewTextStore() *TextStore {
	return &TextStore{entries: make(map[string]string)}
}

// Get returns the text stored for url
func (s *TextStore) Get(url string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.entries[url]
	return text, ok
}

// Has reports whether url has an entry
func (s *TextStore) Has(url string) bool {
	_, ok := s.Get(url)
	return ok
}

// SetIfAbsent stores text for url unless an entry exists. It reports whether
// text was stored.
func (s *TextStore) SetIfAbsent(url, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[url]; ok {
		return false
	}
	s.entries[url] = text
	return true
}

// Len returns the number of entries
func (s *TextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry
func (s *TextStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
}

// GlobalCache is the cross-application cache: one store for stylesheet text
// and one for script text. A process normally owns exactly one, shared by
// every app instance.
type GlobalCache struct {
	Links   *TextStore
	Scripts *TextStore
}

// NewGlobalCache creates an empty cache
func NewGlobalCache() *GlobalCache {
	return &GlobalCache{
		Links:   NewTextStore(),
		Scripts: NewTextStore(),
	}
}

// Reset empties both stores
func (c *GlobalCache) Reset() {
	c.Links.Clear()
	c.Scripts.Clear()
}

// CacheStats is a snapshot of store sizes
type CacheStats struct {
	Links   int `json:"links"`
	Scripts int `json:"scripts"`
}

// Stats returns the number of entries per store
func (c *GlobalCache) Stats() CacheStats {
	return CacheStats{Links: c.Links.Len(), Scripts: c.Scripts.Len()}
}
