/*
Package fetch retrieves stylesheet, script and entry-document text for micro
apps.

# Overview

Client wraps resty with:
  - a pooled transport (go-retryablehttp)
  - a token-bucket limiter (golang.org/x/time/rate)
  - one circuit breaker per origin host (internal/infrastructure/resilience)
  - charset decoding of non-UTF-8 bodies (golang.org/x/net/html/charset)

Retries are deliberately absent. A failed retrieval is reported once as an
*Error and the caller decides what to do with it.

# Errors

	_, err := client.Fetch(ctx, "https://cdn.example.com/a.css", "app-1")
	var ferr *fetch.Error
	if errors.As(err, &ferr) && errors.Is(err, fetch.ErrStatus) {
		log.Printf("origin answered %d", ferr.Status)
	}

resilience.ErrCircuitOpen, context errors and transport errors are wrapped
the same way.
*/
package fetch
