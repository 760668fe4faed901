// Package bridge implements the TCP front end of the gateway: a sequential,
// line-oriented server that forwards SCPI commands from remote clients to a
// single local instrument session.
//
// The wire contract is one command per connection. A client connects, sends
// one newline-terminated command and receives one newline-terminated reply,
// then the server closes the connection. Queries (commands whose last
// non-blank character is '?') relay the instrument's reply verbatim; every
// other command is acknowledged with "Command sent". Instrument write and
// read failures are reported to the client as "Error sending command" and
// "Error reading response".
//
// Connections are served strictly one at a time. The instrument session is
// additionally guarded by a mutex so no two requests can ever interleave
// their write/read pairs on the wire.
//
// Example Usage:
//
//	cfg, err := bridge.NewServerConfig("0.0.0.0", bridge.DefaultPort,
//	    bridge.WithReadBufferSize(4096),
//	)
//	if err != nil {
//	    return err
//	}
//
//	srv, err := bridge.NewServer(ctx, cfg, session)
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Open(); err != nil {
//	    return err
//	}
//	defer srv.Close()
package bridge
