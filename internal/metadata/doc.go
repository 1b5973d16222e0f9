// Package metadata persists the two JSON records a run leaves behind: why the
// raw file was downloaded, and what processing produced from it.
package metadata
