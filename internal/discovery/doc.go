// Package discovery finds plugin manifests on disk and offers them to the
// registry as candidates.
//
// Search paths are walked up to Discovery.MaxDepth directory levels. Files
// are handed to the first config.ManifestLoader that claims their suffix.
// Disabled manifests, manifests without a requested tag and manifests over
// the per-role cap are dropped. A file that fails to parse does not stop the
// scan; its error is returned alongside the candidates that were found.
package discovery
