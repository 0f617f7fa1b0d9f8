// Package scraper drives a pipeline run against the portal.
//
// A run moves through fixed stages:
//
//	DISCOVER    walk the paginated listing and build the catalog of entries
//	TRAVERSE    visit every entry, snapshot it and download its files
//	AWAIT_IDLE  wait until the staging area has no in-progress download
//	ORGANIZE    move staged files into <entry>/<group>/<file>
//	DONE
//
// Any fatal error moves the run to ABORTED. The error is logged and passed to
// the reporter before the browser session is shut down, then returned to the
// caller. Failed downloads are not fatal: the file is skipped with a warning.
//
// Everything runs on the caller's goroutine; one navigation or download is in
// flight at a time.
//
// Usage:
//
//	s := scraper.New(session, area, resolver, org, cfg,
//	    scraper.WithAccount("student"),
//	    scraper.WithReporter(display),
//	)
//	result, err := s.Run(ctx)
package scraper
