// Command xorpcored runs the FEA + RIPv2 routing core: it tracks the
// kernel's interfaces, speaks RIPv2 on the configured ports, and installs
// the routes it learns into the kernel FIB.
package main

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xorproute/xorpcore/internal/audit"
	"github.com/xorproute/xorpcore/internal/config"
	"github.com/xorproute/xorpcore/internal/fea/fib"
	"github.com/xorproute/xorpcore/internal/fea/observer"
	"github.com/xorproute/xorpcore/internal/iftree"
	"github.com/xorproute/xorpcore/internal/ipaddr"
	"github.com/xorproute/xorpcore/internal/metrics"
	"github.com/xorproute/xorpcore/internal/opshttp"
	"github.com/xorproute/xorpcore/internal/publish"
	"github.com/xorproute/xorpcore/internal/rip/auth"
	"github.com/xorproute/xorpcore/internal/rip/port"
	"github.com/xorproute/xorpcore/internal/rip/queue"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
	"github.com/xorproute/xorpcore/internal/runtime"
)

func main() {
	configPath := ""
	for i, a := range os.Args {
		if a == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	log := initLogger(cfg.Service.LogLevel)
	defer log.Sync()

	metrics.Register()

	rt := runtime.New(runtime.RealClock{}, 1024)
	go rt.Run()
	defer rt.Stop()

	tree := iftree.New()
	registry := observer.NewRegistry()
	registry.Register(observer.NewDummy(tree))
	registry.Register(observer.NewNetlink())
	kind, err := registry.SelectBackend(0, false)
	if err != nil {
		log.Fatal("no usable FEA backend", zap.Error(err))
	}
	primary, _ := registry.Primary()
	if err := primary.PullConfig(tree); err != nil {
		log.Fatal("initial pull_config failed", zap.Error(err))
	}
	log.Info("FEA backend selected", zap.String("backend", kind.String()))

	var sinks []routedb.ChurnSink
	var dbPool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		dbPool, err = pgxpool.New(ctx, cfg.Postgres.DSN)
		cancel()
		if err != nil {
			log.Fatal("connecting to postgres", zap.Error(err))
		}
		defer dbPool.Close()
		sinks = append(sinks, audit.NewRouteHistory(dbPool, log, 500, true))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publish.NewChurnPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, nil, nil, log)
		if err != nil {
			log.Fatal("creating kafka publisher", zap.Error(err))
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	fibEngine := fib.New[ipaddr.V4](tree, nil)
	resolveIf := func(e routedb.Entry[ipaddr.V4]) (ifName, vifName string) { return "", "" }
	stack := routedb.NewStack[ipaddr.V4]("v4", fibEngine, resolveIf, log)
	for _, s := range sinks {
		stack.AddSink(s)
	}

	ports := make(map[string]*port.Port)
	conns := make(map[string]*net.UDPConn)
	for name, pc := range cfg.Ports {
		if !pc.Enabled {
			continue
		}
		pcfg := port.DefaultConfig()
		pcfg.Cost = pc.Cost
		pcfg.Advertise = pc.Advertise
		pcfg.AdvertiseDefault = pc.AdvertiseDefault
		pcfg.AcceptDefault = pc.AcceptDefault
		pcfg.Passive = pc.Passive
		pcfg.AcceptNonRipRequests = pc.AcceptNonRipRequests
		switch pc.Horizon {
		case "split":
			pcfg.Horizon = port.HorizonSplit
		case "split-poison-reverse", "":
			pcfg.Horizon = port.HorizonSplitPoisonReverse
		case "none":
			pcfg.Horizon = port.HorizonNone
		}
		pcfg.UnsolicitedMin, pcfg.UnsolicitedMax = cfg.RIP.UpdateInterval()
		pcfg.TriggeredMin = time.Duration(cfg.RIP.TriggeredMinSeconds) * time.Second
		pcfg.TriggeredMax = time.Duration(cfg.RIP.TriggeredMaxSeconds) * time.Second
		pcfg.Expiry = time.Duration(cfg.RIP.ExpiryTimeoutSeconds) * time.Second
		pcfg.Deletion = time.Duration(cfg.RIP.DeletionTimeoutSeconds) * time.Second
		pcfg.TableRequestPeriod = time.Duration(cfg.RIP.TableRequestPeriodSeconds) * time.Second

		var authHandler auth.Handler
		switch pc.AuthType {
		case "plaintext":
			authHandler = auth.Plaintext{Key: pc.AuthKey}
		case "md5":
			md5Handler := auth.NewMD5(rt)
			if err := md5Handler.AddKey(1, pc.AuthKey, time.Time{}, time.Time{}, time.Now()); err != nil {
				log.Error("failed to install md5 key, port will run unauthenticated", zap.String("port", name), zap.Error(err))
			}
			authHandler = md5Handler
		default:
			authHandler = auth.None{}
		}

		conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port.RipPort})
		if err != nil {
			log.Error("failed to bind RIP socket, skipping port", zap.String("port", name), zap.Error(err))
			continue
		}
		conns[name] = conn
		sender := &udpSender{conn: conn}

		vif := tree.GetVif(name, name)
		var ownAddrs []ipaddr.V4
		var rxSubnet netip.Prefix
		if vif != nil {
			for _, a := range vif.V4Addrs {
				ownAddrs = append(ownAddrs, ipaddr.NewV4(a.Addr))
				rxSubnet = netip.PrefixFrom(a.Addr, a.PrefixLen).Masked()
			}
		}

		p := port.New(rt, log, name, pcfg, authHandler, sender, stack, "224.0.0.9", ownAddrs, rxSubnet)
		ports[name] = p
		if pc.Enabled {
			p.Enable()
			p.IOUp()
		}
		go readLoop(log, name, conn, p)
	}

	opsServer := opshttp.NewServer(cfg.Service.HTTPListen, nil, log)
	if err := opsServer.Start(); err != nil {
		log.Fatal("failed to start ops HTTP server", zap.Error(err))
	}

	log.Info("xorpcored started", zap.String("instance_id", cfg.Service.InstanceID))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Service.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	_ = opsServer.Shutdown(shutdownCtx)
	for _, c := range conns {
		_ = c.Close()
	}
	log.Info("xorpcored stopped")
}

// udpSender adapts a *net.UDPConn to port.Sender with synchronous writes;
// since Go's net package blocks until the write syscall returns rather
// than modeling asynchronous completion, Send always reports done
// (ok=true) or a hard error — there is no "busy" state to report.
type udpSender struct {
	conn *net.UDPConn
}

func (s *udpSender) Send(d queue.Datagram) (bool, error) {
	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", d.Addr, d.Port))
	if err != nil {
		return true, err
	}
	_, err = s.conn.WriteToUDP(d.Data, addr)
	return true, err
}

func readLoop(log *zap.Logger, name string, conn *net.UDPConn, p *port.Port) {
	buf := make([]byte, 1500)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		addr, ok := netip.AddrFromSlice(src.IP.To4())
		if !ok {
			continue
		}
		if err := p.HandleDatagram(ipaddr.NewV4(addr), uint16(src.Port), buf[:n]); err != nil {
			log.Debug("datagram rejected", zap.String("port", name), zap.Error(err))
		}
	}
}

func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
