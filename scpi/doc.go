// Package scpi implements the line-level conventions of SCPI-style instrument
// control text: classification of request lines into commands and queries, and
// the fixed reply texts used on the wire by the bridge.
//
// A request line is a query when its last non-whitespace character is '?';
// queries expect the instrument to produce a reply, commands do not. The
// package performs no SCPI grammar validation; instruments are the authority
// on what the text means.
package scpi
