// visagate exposes one locally attached instrument to remote TCP clients.
//
// Clients connect, send a single line-terminated SCPI command, and receive
// one reply: the raw instrument response for queries, an acknowledgement for
// plain commands. The instrument is picked at startup and held for the
// daemon's lifetime.
//
// Usage:
//
//	visagate [flags]
//
//	-config string   configuration file path
//	-key string      instrument key: resource descriptor or identity substring
//	-port int        listen port (overrides the config file)
//	-list            print attached instruments and exit
//	-debug           enable debug logging
//
// Run with -list to see what is attached:
//
//	$ visagate -list
//	1: USB0::0x0699::0x0522::C012345::INSTR, TEKTRONIX,MSO54,C012345,1.20.6
//	2: ASRL/dev/ttyUSB0::INSTR, FLUKE,8846A,9040010,1.0
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/visagate/visagate/bridge"
	"github.com/visagate/visagate/config"
	"github.com/visagate/visagate/discovery"
	"github.com/visagate/visagate/logger"
	"github.com/visagate/visagate/visa"
	_ "github.com/visagate/visagate/visa/asrl"
	"github.com/visagate/visagate/visa/tcpip"
	_ "github.com/visagate/visagate/visa/usbtmc"
)

func main() {
	var (
		configPath string
		key        string
		port       int
		list       bool
		debug      bool
	)

	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&key, "key", "", "instrument key: resource descriptor or identity substring")
	flag.IntVar(&port, "port", 0, "listen port (overrides the config file)")
	flag.BoolVar(&list, "list", false, "print attached instruments and exit")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if key != "" {
		cfg.Instrument.Key = key
	}
	if port > 0 {
		cfg.Listen.Port = port
	}
	if debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	log := logger.NewSlog(level, false)
	logger.SetLogger(log)

	if len(cfg.TCPIPEndpoints) > 0 {
		if err := tcpip.SetEndpoints(cfg.TCPIPEndpoints...); err != nil {
			log.Fatal("invalid tcpip endpoint in configuration", "error", err)
		}
	}

	rm, err := visa.NewResourceManager(visa.WithLogger(log))
	if err != nil {
		log.Fatal("failed to create resource manager", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolverOpts := []discovery.Option{
		discovery.WithLogger(log),
		discovery.WithFilter(cfg.Instrument.Filter),
		discovery.WithQueryTimeout(time.Duration(cfg.Instrument.QueryTimeout)),
	}

	if list {
		err := printInventory(ctx, rm, resolverOpts)
		_ = rm.Close()
		if err != nil {
			log.Fatal("failed to list instruments", "error", err)
		}

		return
	}

	rsrc, err := selectResource(ctx, rm, cfg.Instrument.Key, resolverOpts)
	if err != nil {
		_ = rm.Close()
		log.Fatal("failed to select instrument", "key", cfg.Instrument.Key, "error", err)
	}

	session, err := rm.Open(ctx, rsrc)
	if err != nil {
		_ = rm.Close()
		log.Fatal("failed to open instrument session", "resource", rsrc.String(), "error", err)
	}

	// banner query is bounded; serving reads stay unbounded
	_ = session.SetTimeout(time.Duration(cfg.Instrument.QueryTimeout))
	identity, err := visa.QueryIdentity(session)
	if err != nil {
		log.Warn("instrument did not answer identity query", "resource", rsrc.String(), "error", err)
		identity = ""
	}
	_ = session.SetTimeout(0)

	log.Info("instrument attached", "resource", rsrc.String(), "identity", identity)

	srvOpts := []bridge.ServerOption{
		bridge.WithLogger(log),
		bridge.WithReadBufferSize(cfg.Listen.ReadBufferSize),
	}
	if cfg.Announce != "" {
		srvOpts = append(srvOpts, bridge.WithAnnounce(cfg.Announce))
	}

	srvCfg, err := bridge.NewServerConfig(cfg.Listen.Host, cfg.Listen.Port, srvOpts...)
	if err != nil {
		_ = session.Close()
		_ = rm.Close()
		log.Fatal("failed to create server config", "error", err)
	}

	srv, err := bridge.NewServer(ctx, srvCfg, session)
	if err != nil {
		_ = session.Close()
		_ = rm.Close()
		log.Fatal("failed to create server", "error", err)
	}
	srv.SetAnnounceInfo(rsrc, identity)

	if err := srv.Open(); err != nil {
		_ = session.Close()
		_ = rm.Close()
		log.Fatal("failed to start server", "error", err)
	}

	exitSig := make(chan os.Signal, 1)
	signal.Notify(exitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	<-exitSig

	log.Info("exit signal received")

	_ = srv.Close()
	_ = session.Close()
	_ = rm.Close()
	cancel()

	log.Info("shutdown finished")
}

// selectResource maps the configured key to a resource descriptor. A key
// containing the :: separator is used as a literal descriptor; anything else
// is matched against instrument identities.
func selectResource(ctx context.Context, rm *visa.ResourceManager, key string, opts []discovery.Option) (visa.Resource, error) {
	if key == "" {
		return "", fmt.Errorf("no instrument key configured; run -list to see attached instruments")
	}

	if strings.Contains(key, "::") {
		rsrc := visa.Resource(key)
		if !rsrc.Valid() {
			return "", fmt.Errorf("%q: %w", key, visa.ErrInvalidResource)
		}

		return rsrc, nil
	}

	resolver, err := discovery.NewResolver(rm, opts...)
	if err != nil {
		return "", err
	}

	return resolver.Resolve(ctx, key)
}

// printInventory writes the attached instruments to stdout, one numbered
// line per instrument.
func printInventory(ctx context.Context, rm *visa.ResourceManager, opts []discovery.Option) error {
	resolver, err := discovery.NewResolver(rm, opts...)
	if err != nil {
		return err
	}

	instruments, err := resolver.Inventory(ctx)
	if err != nil {
		return err
	}

	if len(instruments) == 0 {
		fmt.Println("no instruments found")
		return nil
	}

	for i, inst := range instruments {
		identity := inst.Identity
		if identity == "" {
			identity = "(no identity)"
		}
		fmt.Printf("%d: %s, %s\n", i+1, inst.Resource.String(), identity)
	}

	return nil
}
