// Package cli implements the callsign-mirror command line.
//
// The root command has three subcommands: discover (fetch the Ofcom page and
// download the dataset), process (derive sorted CSV and JSON when the raw
// file changed) and run (both in order). Exit status is 0 on success and 1 on
// any failure.
package cli
