// Package checkpoint persists the catalog of a run after traversal so that
// `moodlescraper organize` can rebuild the directory layout later without
// scraping the portal again.
//
// Checkpoints are JSON files written atomically (temporary file, then rename)
// through an afero filesystem. Each file carries a format version, a run id
// and the full ordered catalog, including page snapshots.
package checkpoint
