// Package dataset parses the callsign CSV into ordered records, sorts them by
// the first column, and writes them back out as CSV and JSON.
//
// Column names are read from the header row; nothing here assumes what the
// upstream file calls its columns.
package dataset
