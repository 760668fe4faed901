// Package discovery selects the instrument a bridge should serve.
//
// The resolver enumerates attached instruments through a visa.ResourceManager,
// asks each candidate for its identification string over a short-lived
// session, and returns the first resource, in enumeration order, whose
// identity contains the target key (case insensitive). Candidates that fail
// to open or answer are skipped so one broken device cannot hide the others.
package discovery
