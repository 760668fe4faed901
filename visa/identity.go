package visa

import (
	"fmt"

	"github.com/visagate/visagate/scpi"
)

// identityReadSize bounds the identity reply read. Identification strings are
// short vendor,model,serial,firmware tuples; 256 bytes is generous.
const identityReadSize = 256

// QueryIdentity sends the standard identification query on the session and
// returns the reply with trailing terminators stripped.
//
// The session's timeout, if any, bounds the exchange; callers that must not
// block indefinitely should call SetTimeout first.
func QueryIdentity(s Session) (string, error) {
	if _, err := s.Write([]byte(scpi.IdentityQuery + "\n")); err != nil {
		return "", fmt.Errorf("write identity query: %w", err)
	}

	buf := make([]byte, identityReadSize)
	n, err := s.Read(buf)
	if err != nil && n == 0 {
		return "", fmt.Errorf("read identity reply: %w", err)
	}

	return scpi.TrimResponse(string(buf[:n])), nil
}
