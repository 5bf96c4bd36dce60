package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/microhost/internal/dom"
	"github.com/GriffinCanCode/microhost/internal/shared/id"
	"github.com/GriffinCanCode/microhost/internal/source"
	"golang.org/x/net/html"
)

// State represents an app instance lifecycle state
type State string

const (
	StateLoading   State = "loading"
	StateMounted   State = "mounted"
	StateError     State = "error"
	StateUnmounted State = "unmounted"
)

// Instance is one mounted micro app. It satisfies source.App.
type Instance struct {
	id       id.AppID
	name     string
	url      string
	prefetch bool

	src       *source.Source
	doc       *dom.Document
	container *html.Node
	head      *html.Node
	body      *html.Node

	mu        sync.RWMutex
	state     State
	err       error
	createdAt time.Time
	mountedAt time.Time
	// nodes with event listeners, dropped on unmount
	listened []*html.Node
}

func newInstance(tag, name, url string, prefetch bool) *Instance {
	container := dom.NewElement(tag, html.Attribute{Key: "name", Val: name})
	head := dom.NewElement(tag + "-head")
	body := dom.NewElement(tag + "-body")
	container.AppendChild(head)
	container.AppendChild(body)

	return &Instance{
		id:        id.NewAppID(),
		name:      name,
		url:       url,
		prefetch:  prefetch,
		src:       source.NewSource(),
		doc:       dom.New(container),
		container: container,
		head:      head,
		body:      body,
		state:     StateLoading,
		createdAt: time.Now(),
	}
}

func (i *Instance) ID() id.AppID            { return i.id }
func (i *Instance) Name() string            { return i.name }
func (i *Instance) URL() string             { return i.url }
func (i *Instance) IsPrefetch() bool        { return i.prefetch }
func (i *Instance) Source() *source.Source  { return i.src }
func (i *Instance) Document() *dom.Document { return i.doc }
func (i *Instance) Head() *html.Node        { return i.head }
func (i *Instance) Body() *html.Node        { return i.body }
func (i *Instance) Container() *html.Node   { return i.container }

// State returns the current lifecycle state
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Err returns the mount failure, if any
func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// load moves the head and body content of the entry markup into the
// container
func (i *Instance) load(markup string) error {
	parsed, err := dom.Parse(strings.NewReader(markup))
	if err != nil {
		return err
	}

	srcHead := parsed.First("head")
	srcBody := parsed.First("body")
	if srcHead == nil || srcBody == nil {
		return fmt.Errorf("entry markup of %s has no head or body", i.url)
	}

	move := func(from, to *html.Node) {
		for c := from.FirstChild; c != nil; {
			next := c.NextSibling
			from.RemoveChild(c)
			i.doc.Append(to, c)
			c = next
		}
	}
	move(srcHead, i.head)
	move(srcBody, i.body)
	return nil
}

func (i *Instance) setState(state State, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = state
	i.err = err
	if state == StateMounted {
		i.mountedAt = time.Now()
	}
}

func (i *Instance) track(n *html.Node) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listened = append(i.listened, n)
}

func (i *Instance) untrack(n *html.Node) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, tracked := range i.listened {
		if tracked == n {
			i.listened = append(i.listened[:k], i.listened[k+1:]...)
			return true
		}
	}
	return false
}

func (i *Instance) untrackAll() []*html.Node {
	i.mu.Lock()
	defer i.mu.Unlock()
	nodes := i.listened
	i.listened = nil
	return nodes
}

// Resource describes one entry of an instance's resource maps
type Resource struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Loaded   bool   `json:"loaded"`
	Size     int    `json:"size"`
	Global   bool   `json:"global"`
	External bool   `json:"external"`
}

// Info is a point-in-time view of an instance
type Info struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Prefetch  bool       `json:"prefetch"`
	State     State      `json:"state"`
	Error     string     `json:"error,omitempty"`
	Resources []Resource `json:"resources"`
	CreatedAt time.Time  `json:"created_at"`
	MountedAt *time.Time `json:"mounted_at,omitempty"`
}

// Info returns a snapshot of the instance
func (i *Instance) Info() Info {
	i.mu.RLock()
	info := Info{
		ID:        i.id.String(),
		Name:      i.name,
		URL:       i.url,
		Prefetch:  i.prefetch,
		State:     i.state,
		CreatedAt: i.createdAt,
	}
	if i.err != nil {
		info.Error = i.err.Error()
	}
	if !i.mountedAt.IsZero() {
		mounted := i.mountedAt
		info.MountedAt = &mounted
	}
	i.mu.RUnlock()

	info.Resources = make([]Resource, 0, i.src.Links.Len()+i.src.Scripts.Len())
	for _, e := range i.src.Links.Entries() {
		info.Resources = append(info.Resources, Resource{
			URL:      e.URL,
			Kind:     "stylesheet",
			Loaded:   e.Info.Loaded(),
			Size:     len(e.Info.Code()),
			Global:   e.Info.IsGlobal,
			External: true,
		})
	}
	for _, e := range i.src.Scripts.Entries() {
		info.Resources = append(info.Resources, Resource{
			URL:      e.URL,
			Kind:     "script",
			Loaded:   e.Info.Loaded(),
			Size:     len(e.Info.Code()),
			Global:   e.Info.IsGlobal,
			External: e.Info.IsExternal,
		})
	}
	return info
}
