package bridge

import (
	"bufio"
	"errors"
	"io"
	"net"

	"github.com/visagate/visagate/logger"
	"github.com/visagate/visagate/scpi"
)

// serveConn handles one client connection: it reads a single command line,
// bridges it to the instrument and writes the single reply line back.
// Failures never propagate to the accept loop.
func (s *Server) serveConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	replied := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		s.logger.Error("recovered from panic while serving client",
			"method", "serveConn", "remote_address", conn.RemoteAddr(), "panic", r,
		)
		s.metrics.incConnDroppedCount()

		if !replied {
			_, _ = conn.Write([]byte(scpi.ReadErrText + "\n"))
		}
	}()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		// closing before completing a line is a valid silent exit
		if errors.Is(err, io.EOF) {
			s.metrics.incConnServedCount()
			return
		}

		s.logger.Debug("failed to read command line", "method", "serveConn", "remote_address", conn.RemoteAddr(), "error", err)
		s.metrics.incConnDroppedCount()

		return
	}

	cmd := scpi.TrimLine(line)
	if cmd == "" {
		s.metrics.incConnServedCount()
		return
	}

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("command received", "method", "serveConn", "remote_address", conn.RemoteAddr(), "command", cmd)
	}

	payload := s.bridgeCommand(cmd)

	if err := s.respond(conn, payload); err != nil {
		s.logger.Debug("failed to write reply to client", "method", "serveConn", "remote_address", conn.RemoteAddr(), "error", err)
		s.metrics.incConnDroppedCount()

		return
	}
	replied = true

	s.metrics.incConnServedCount()
}

// bridgeCommand forwards one command line to the instrument while holding the
// session mutex and returns the reply payload for the client.
func (s *Server) bridgeCommand(cmd string) string {
	s.sessionMutex.Lock()
	defer s.sessionMutex.Unlock()

	if _, err := s.session.Write([]byte(cmd + "\n")); err != nil {
		s.metrics.incWriteErrCount()
		s.logger.Error("failed to forward command to instrument", "method", "bridgeCommand", "command", cmd, "error", err)

		return scpi.WriteErrText
	}

	if !scpi.IsQuery(cmd) {
		s.metrics.incCommandCount()
		return scpi.Ack
	}

	s.metrics.incQueryCount()

	buf := make([]byte, s.cfg.ReadBufferSize())
	n, err := s.session.Read(buf)
	if err != nil && n == 0 {
		s.metrics.incReadErrCount()
		s.logger.Error("failed to read instrument reply", "method", "bridgeCommand", "command", cmd, "error", err)

		return scpi.ReadErrText
	}

	return string(buf[:n])
}

// respond writes the reply payload plus the line terminator to the client.
func (s *Server) respond(conn net.Conn, payload string) error {
	if _, err := conn.Write([]byte(payload + "\n")); err != nil {
		return err
	}

	if s.logger.Level() == logger.DebugLevel {
		s.logger.Debug("reply sent to client", "method", "respond", "remote_address", conn.RemoteAddr(), "bytes", len(payload)+1)
	}

	return nil
}
