// Package loader fetches the external scripts of an app as one batch.
//
// The loader reads the global script cache but never writes it; callers
// publish scripts through source.CommitScript, typically from onItemSuccess.
package loader
