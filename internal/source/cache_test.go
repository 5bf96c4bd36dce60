package source

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextStoreFirstWriteWins(t *testing.T) {
	s := NewTextStore()

	assert.True(t, s.SetIfAbsent("https://cdn/a.css", "first"))
	assert.False(t, s.SetIfAbsent("https://cdn/a.css", "second"))

	text, ok := s.Get("https://cdn/a.css")
	assert.True(t, ok)
	assert.Equal(t, "first", text)
}

func TestTextStoreEmptyTextIsAnEntry(t *testing.T) {
	s := NewTextStore()
	s.SetIfAbsent("https://cdn/empty.css", "")

	assert.True(t, s.Has("https://cdn/empty.css"))
	assert.False(t, s.SetIfAbsent("https://cdn/empty.css", "later"))
}

func TestTextStoreConcurrentWriters(t *testing.T) {
	s := NewTextStore()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner string
		wins   int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("app-%d", i)
			if s.SetIfAbsent("https://cdn/shared.js", text) {
				mu.Lock()
				winner = text
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, _ := s.Get("https://cdn/shared.js")
	assert.Equal(t, winner, got)
}

func TestGlobalCacheReset(t *testing.T) {
	c := NewGlobalCache()
	c.Links.SetIfAbsent("https://cdn/a.css", "a")
	c.Scripts.SetIfAbsent("https://cdn/a.js", "a")
	c.Scripts.SetIfAbsent("https://cdn/b.js", "b")

	assert.Equal(t, CacheStats{Links: 1, Scripts: 2}, c.Stats())

	c.Reset()
	assert.Equal(t, CacheStats{}, c.Stats())
	assert.True(t, c.Links.SetIfAbsent("https://cdn/a.css", "again"))
}

func TestStoresAreIndependent(t *testing.T) {
	c := NewGlobalCache()
	c.Links.SetIfAbsent("https://cdn/x", "css")

	assert.False(t, c.Scripts.Has("https://cdn/x"))
	assert.True(t, c.Scripts.SetIfAbsent("https://cdn/x", "js"))
}

func TestResourceMapKeepsInsertionOrder(t *testing.T) {
	m := NewResourceMap[*ScriptInfo]()
	first := &ScriptInfo{}
	m.Set("https://cdn/b.js", first)
	m.Set("https://cdn/a.js", &ScriptInfo{})
	m.Set("https://cdn/b.js", &ScriptInfo{Async: true})

	entries := m.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "https://cdn/b.js", entries[0].URL)
	assert.True(t, entries[0].Info.Async)
	assert.Equal(t, "https://cdn/a.js", entries[1].URL)
}
