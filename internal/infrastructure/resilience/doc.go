/*
Package resilience provides a circuit breaker for resource retrieval.

# Overview

Micro apps often pull their stylesheets and scripts from the same few CDNs.
When one origin goes down, every mount that references it would otherwise
wait for its own timeout. The breaker trips per origin so later retrievals
against a dead origin fail immediately, while other origins are unaffected.

A tripped breaker is not a retry mechanism: a failed retrieval stays failed.

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	})

	err := breakers.For(u.Host).Execute(func() error {
		return doRequest()
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                                       |
	                                                [probe failed]
	                                                       v
	                                                      Open
*/
package resilience
