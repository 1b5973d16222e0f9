// Package pipeline runs the two stages of a mirror update.
//
// Discover fetches the Ofcom page, picks the dataset link and downloads the
// raw CSV. Process derives the sorted CSV and both JSON files from it, but
// only when the raw file's digest differs from the one recorded by the last
// processing run or a derived file has gone missing. The filesystem is the
// only hand-off between the stages.
package pipeline
