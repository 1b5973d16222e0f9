// Package artifact names the files a run reads and writes, and computes the
// size and SHA-256 digest used for change detection.
package artifact
