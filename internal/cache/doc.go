// Package cache implements the content-addressed audio artifact store.
//
// An artifact is named audio_<sha256 of the words>.<ext> and is written
// once: synthesis output goes to a temp file in the store directory, is
// synced, then renamed into place. A file at the final path is therefore
// always complete and is treated as a cache hit. Failed syntheses are never
// recorded, so a later request retries them.
package cache
