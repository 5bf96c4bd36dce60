// Package dom provides the document tree operations the resource loader
// needs: node replacement, removal, insertion, attribute access and comment
// creation, over golang.org/x/net/html nodes.
//
// A Document belongs to exactly one application instance. Structural
// changes go through its methods, which serialize access; the package-level
// helpers in node.go are for detached nodes.
package dom
