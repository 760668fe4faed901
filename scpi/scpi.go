package scpi

import "strings"

// Reply texts written to the client, always newline-terminated on the wire.
const (
	// Ack is the reply for a command that was forwarded successfully.
	Ack = "Command sent"
	// WriteErrText is the reply when forwarding a line to the instrument fails.
	WriteErrText = "Error sending command"
	// ReadErrText is the reply when reading a query response from the instrument fails.
	ReadErrText = "Error reading response"
)

// IdentityQuery is the standard self-identification query.
const IdentityQuery = "*IDN?"

// TrimLine strips trailing carriage returns and newlines from a raw request
// line. It does not touch interior or leading whitespace.
func TrimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// IsQuery reports whether line expects a reply from the instrument, i.e.
// whether its last non-whitespace character is '?'.
func IsQuery(line string) bool {
	trimmed := strings.TrimRight(line, " \t\r\n")
	return strings.HasSuffix(trimmed, "?")
}

// TrimResponse strips trailing line terminators from an instrument reply,
// typically before logging or matching identity strings.
func TrimResponse(s string) string {
	return strings.TrimRight(s, "\r\n")
}
