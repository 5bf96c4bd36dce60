/*
Package monitoring provides Prometheus metrics for the micro-app host.

# Metrics

Retrieval:
  - microhost_fetches_total{kind,status}
  - microhost_fetch_duration_seconds{kind}

Caches:
  - microhost_cache_lookups_total{kind,tier,result}
  - microhost_global_cache_writes_total{kind,result}

A "stored" write is the first successful write for a URL; "ignored" counts
the later set-if-absent attempts that lost the race.

Applications:
  - microhost_apps_mounted
  - microhost_mounts_total{status}

HTTP:
  - microhost_http_requests_total{method,path,status}
  - microhost_http_request_duration_seconds{method,path}

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

Every Metrics method tolerates a nil receiver, so tests and embedders can
pass nil to skip instrumentation.
*/
package monitoring
