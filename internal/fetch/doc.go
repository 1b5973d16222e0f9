// Package fetch performs the two HTTP GETs a run needs: the Ofcom open-data
// page, buffered in memory, and the dataset itself, streamed to disk.
//
// Every request is bounded by a single client timeout. There are no retries.
package fetch
