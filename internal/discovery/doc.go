// Package discovery locates the amateur callsign dataset link on the Ofcom
// open-data page.
//
// A page is expected to carry exactly one anchor whose href mentions both the
// dataset keyword and the file extension. The package also reads the
// "last updated" text that Ofcom publishes in the same table row as the link,
// and turns site-relative hrefs into absolute URLs.
package discovery
