// Package http exposes the app manager over a JSON control API.
//
// Routes:
//
//	GET    /health              app stats and per-origin breaker states
//	POST   /apps                mount {name, url, prefetch}
//	GET    /apps                list, optionally ?state=mounted|loading|error
//	GET    /apps/:id            one app with its resources
//	GET    /apps/:id/html       rendered app container
//	POST   /apps/:id/links      insert {rel, href, global}, wait for load/error
//	DELETE /apps/:id            unmount
//	DELETE /cache               empty the global cache
package http
