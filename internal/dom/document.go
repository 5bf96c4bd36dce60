package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a node tree owned by one application instance. Every
// structural mutation and every text write goes through its mutex because
// retrieval callbacks land on other goroutines.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// New wraps an existing tree
func New(root *html.Node) *Document {
	return &Document{root: root}
}

// Parse parses a full HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return New(root), nil
}

// ParseFragment parses markup in the context of a body element and returns
// the resulting top-level nodes, detached.
func ParseFragment(r io.Reader) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(r, context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML fragment: %w", err)
	}
	return nodes, nil
}

// Root returns the root node
func (d *Document) Root() *html.Node {
	return d.root
}

// Find returns every node under the root matching a CSS selector, in
// document order
func (d *Document) Find(selector string) []*html.Node {
	return d.FindIn(d.root, selector)
}

// FindIn returns every node under scope matching a CSS selector
func (d *Document) FindIn(scope *html.Node, selector string) []*html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := goquery.NewDocumentFromNode(scope).Find(selector).Nodes
	out := make([]*html.Node, len(nodes))
	copy(out, nodes)
	return out
}

// First returns the first node matching selector, or nil
func (d *Document) First(selector string) *html.Node {
	nodes := d.Find(selector)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Replace puts newNode where old is. It reports false, and does nothing,
// when old is detached.
func (d *Document) Replace(newNode, old *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return replace(newNode, old)
}

// ReplaceOrAppend replaces old by newNode when old is attached, otherwise
// appends newNode to fallback. Both happen under one lock so a concurrent
// removal of old cannot slip in between.
func (d *Document) ReplaceOrAppend(newNode, old, fallback *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old != nil && replace(newNode, old) {
		return
	}
	detach(newNode)
	fallback.AppendChild(newNode)
}

// Remove detaches n from its parent; detached nodes are ignored
func (d *Document) Remove(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	detach(n)
}

// Append appends child to parent, detaching it first if needed
func (d *Document) Append(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	detach(child)
	parent.AppendChild(child)
}

// IsAttached reports whether n currently has a parent
func (d *Document) IsAttached(n *html.Node) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return n != nil && n.Parent != nil
}

// Text returns the concatenated text of n's children
func (d *Document) Text(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Text(n)
}

// SetText replaces n's children with one text node
func (d *Document) SetText(n *html.Node, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	SetText(n, text)
}

// Attr reads an attribute of an attached node
func (d *Document) Attr(n *html.Node, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Attr(n, key)
}

// SetAttr sets an attribute on an attached node
func (d *Document) SetAttr(n *html.Node, key, val string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	SetAttr(n, key, val)
}

// Render serializes the subtree rooted at n (the whole document when n is nil)
func (d *Document) Render(n *html.Node) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n == nil {
		n = d.root
	}
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return sb.String(), nil
}

// RenderChildren serializes n's children without n itself
func (d *Document) RenderChildren(n *html.Node) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("failed to render HTML: %w", err)
		}
	}
	return sb.String(), nil
}

func replace(newNode, old *html.Node) bool {
	parent := old.Parent
	if parent == nil {
		return false
	}
	detach(newNode)
	parent.InsertBefore(newNode, old)
	parent.RemoveChild(old)
	return true
}

func detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
