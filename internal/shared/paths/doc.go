// Package paths resolves the URLs micro apps reference.
//
// Every resource map in the host is keyed by the absolute URL produced by
// ToAbsolute, so two apps referencing "./a.css" from different bases never
// collide, while two apps referencing the same CDN file share one global
// cache entry.
package paths
