package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"questline.gg/internal/config"
	"questline.gg/internal/persistence/auditdb"
	persistlog "questline.gg/internal/persistence/log"
	"questline.gg/internal/protocol"
	"questline.gg/internal/quest"
	"questline.gg/internal/sim/playerstate"
	"questline.gg/internal/track"
	adminhttp "questline.gg/internal/transport/admin"
	"questline.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory (quests/, tags.json)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml if present)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite transition index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := *tuningPath
	if tp == "" {
		candidate := filepath.Join(*configDir, "tuning.yaml")
		if _, err := os.Stat(candidate); err == nil {
			tp = candidate
		}
	}
	tuning, err := config.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if tuning.ProtocolVersion != "" && tuning.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning pins protocol %s but this build speaks %s", tuning.ProtocolVersion, protocol.Version)
	}

	cat, err := quest.Load(*configDir, logger)
	if err != nil {
		logger.Fatalf("load quest catalog: %v", err)
	}
	logger.Printf("catalog loaded: %d quests digest=%s", cat.Len(), cat.Digest())

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)
	progressPath := filepath.Join(worldDir, "progress.json.zst")

	store := track.NewStore(*worldID)
	if err := store.LoadFrom(progressPath); err != nil {
		if os.IsNotExist(err) {
			logger.Printf("no progress document yet, starting empty")
		} else {
			// In-memory state stays authoritative; keep the old file until a
			// clean flush replaces it.
			logger.Printf("WARN load progress document: %v", err)
		}
	}

	players := playerstate.NewRegistry()
	tracker := track.New(track.Config{
		WorldID:       *worldID,
		TickInterval:  time.Duration(tuning.TickIntervalMs) * time.Millisecond,
		FlushInterval: time.Duration(tuning.FlushIntervalMs) * time.Millisecond,
		ProgressPath:  progressPath,
		SessionQueue:  tuning.SessionQueue,
	}, cat, store, players, logger)

	// Audit fanout: JSONL log always, sqlite index unless disabled.
	transitions := persistlog.NewTransitionLogger(worldDir)
	defer transitions.Close()
	sinks := []track.AuditSink{transitions}

	var index *auditdb.DB
	if !*disableDB {
		index, err = auditdb.Open(filepath.Join(worldDir, "audit.db"))
		if err != nil {
			logger.Fatalf("open audit index: %v", err)
		}
		defer index.Close()
		sinks = append(sinks, index)
	}
	tracker.SetAuditSink(fanout(sinks))

	tracker.SetCommandRunner(func(playerID, command string) {
		// No command interpreter in this server; keep the record.
		logger.Printf("reward command player=%s cmd=%q", playerID, command)
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trackerDone := make(chan error, 1)
	go func() { trackerDone <- tracker.Run(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(tracker, ws.Config{
		ReadTimeout:  time.Duration(tuning.ReadTimeoutS) * time.Second,
		WriteTimeout: time.Duration(tuning.WriteTimeoutS) * time.Second,
		SessionQueue: tuning.SessionQueue,
	}, logger).Handler())
	adminhttp.NewServer(tracker, players, index, logger).Register(mux)
	mux.HandleFunc("/admin/v1/catalog/reload", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fresh, err := quest.Load(*configDir, logger)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		tracker.Reload() <- fresh
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	httpSrv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s (world=%s)", *addr, *worldID)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	// Tracker exits via ctx and flushes the store on the way out.
	select {
	case <-trackerDone:
	case <-time.After(5 * time.Second):
		logger.Printf("WARN tracker did not stop in time")
	}
	logger.Printf("bye")
}

type multiSink []track.AuditSink

func (m multiSink) RecordTransition(ev track.TransitionEvent) {
	for _, s := range m {
		s.RecordTransition(ev)
	}
}

func fanout(sinks []track.AuditSink) track.AuditSink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return multiSink(sinks)
}
