// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shippers
//   - Development: colored console output
//
// Components of the resource loader take a *zap.Logger. Use Component to
// derive a named child logger so retrieval failures can be traced back to
// the pipeline that produced them:
//
//	logger := logging.NewDefault()
//	links := source.NewLinkParser(source.Deps{Logger: logger.Component("links")})
//
// Failures are always logged with the owning application's name:
//
//	logger.Error("failed to fetch stylesheet",
//		zap.String("app", app.Name()),
//		zap.String("url", url),
//		zap.Error(err),
//	)
package logging
