// Package main is the entry point of microhost.
//
// microhost mounts micro-frontend apps: it fetches each app's entry
// document, pulls its stylesheets and scripts through a shared cache and
// serves the composed result over a small control API.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Control API
//	./microhost -port 8000
//
//	# Mount the apps of a manifest and print their markup
//	./microhost -manifest apps.yaml
//
//	# Mount a manifest, then keep serving
//	./microhost -manifest apps.yaml -serve
//
// Manifest format:
//
//	apps:
//	  - name: shop
//	    url: https://shop.example.com/
//	  - name: cart
//	    url: https://cart.example.com/index.html
//	    prefetch: true
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
