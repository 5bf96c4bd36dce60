/*
Package source manages the external resources of micro apps: the
stylesheets and scripts their markup references.

# Resource maps

Every app instance owns a Source with two ResourceMaps keyed by absolute URL
(inline scripts use a generated key). Descriptors (LinkInfo, ScriptInfo)
receive their code exactly once.

# Global cache

GlobalCache holds stylesheet and script text shared by all app instances.
Stores only accept the first write for a URL. Two apps fetching the same URL
at the same time both go to the network; whichever finishes first is cached.

# Stylesheets

	parser := source.NewLinkParser(source.Deps{
		Retriever: client,
		Scoper:    scoper,
		Events:    events,
		Cache:     cache,
	})

	for _, link := range doc.Find("link") {
		parser.ExtractLink(link, app)
	}
	parser.FetchLinksFromHTML(ctx, app, head, func() { close(linksDone) })

Links inserted later go through ExtractDynamicLink and ResolveDynamic, which
look in the app map, then the global cache, then the network.

# Batches

Stream runs one batch of retrievals with bounded concurrency. Item callbacks
are serialized and the completion callback runs after all of them.
*/
package source
