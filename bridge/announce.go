package bridge

import (
	"fmt"
	"net"

	"github.com/enbility/zeroconf/v3"

	"github.com/visagate/visagate/visa"
)

const (
	announceService = "_scpi-raw._tcp"
	announceDomain  = "local."
)

// announcer wraps a zeroconf registration for a running server.
type announcer struct {
	server *zeroconf.Server
}

func newAnnouncer(instance string, port int, rsrc visa.Resource, identity string) (*announcer, error) {
	txt := make([]string, 0, 2)
	if rsrc != "" {
		txt = append(txt, "resource="+string(rsrc))
	}
	if identity != "" {
		txt = append(txt, "identity="+identity)
	}

	server, err := zeroconf.Register(instance, announceService, announceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}

	return &announcer{server: server}, nil
}

func (a *announcer) shutdown() {
	if a.server != nil {
		a.server.Shutdown()
	}
}

// SetAnnounceInfo sets the instrument descriptor and identity carried in the
// TXT records of the mDNS announcement. Call it before Open; it has no effect
// on a registration that is already active.
func (s *Server) SetAnnounceInfo(rsrc visa.Resource, identity string) {
	s.annMutex.Lock()
	defer s.annMutex.Unlock()

	s.announceRsrc = rsrc
	s.announceIdn = identity
}

// startAnnounce registers the server over mDNS. Registration failure is
// logged, never fatal.
func (s *Server) startAnnounce(instance string) {
	port := s.cfg.port
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	s.annMutex.Lock()
	defer s.annMutex.Unlock()

	ann, err := newAnnouncer(instance, port, s.announceRsrc, s.announceIdn)
	if err != nil {
		s.logger.Warn("failed to announce server over mdns", "method", "startAnnounce", "instance", instance, "error", err)
		return
	}

	s.announcer = ann
	s.logger.Info("server announced over mdns", "instance", instance, "service", announceService, "port", port)
}

func (s *Server) stopAnnounce() {
	s.annMutex.Lock()
	defer s.annMutex.Unlock()

	if s.announcer != nil {
		s.announcer.shutdown()
		s.announcer = nil
	}
}
