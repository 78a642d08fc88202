package main

import (
	"context"
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agenx/queue-service/internal/completion"
	"agenx/queue-service/internal/config"
	"agenx/queue-service/internal/httpapi"
	"agenx/queue-service/internal/queue"
	"agenx/queue-service/internal/realtime"
	"agenx/queue-service/internal/store"
	"agenx/queue-service/internal/store/postgres"
	"agenx/queue-service/internal/telemetry"

	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type snapshotEnvelope struct {
	Type    string         `json:"type"`
	Payload queue.Snapshot `json:"payload"`
}

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("queue-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)
	hub := realtime.NewHub()
	machine := queue.NewStateMachine(st, hub)
	positions := queue.NewPositionCalculator(st, cfg.DefaultServiceSeconds)
	completer := completion.NewTransactor(st, st, st, st, st, machine)
	handler := httpapi.NewHandler(st, machine, positions, completer, hub)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:       cfg.RateLimitPerMinute,
		IPBurst:           cfg.RateLimitBurst,
		BusinessPerMinute: cfg.BusinessRateLimitPerMinute,
		BusinessBurst:     cfg.BusinessRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/realtime/", newRealtimeHandler(hub, st, positions, cfg.ReconcileInterval))
	mux.Handle("/", handler.Routes())

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "queue-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// newRealtimeHandler serves the SockJS endpoint. Staff dashboards
// subscribe with a business_id and get raw change events; a waiting
// customer subscribes with their entry_id and additionally gets live
// position/countdown snapshots driven by a viewer session.
func newRealtimeHandler(hub *realtime.Hub, entries store.EntryStore, positions *queue.PositionCalculator, reconcileInterval time.Duration) http.Handler {
	return sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := hub.Subscribe(realtime.Subscription{})
		defer hub.Unregister(client)

		go func() {
			for event := range client.Send {
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				_ = session.Send(string(payload))
			}
		}()

		var viewerCancel context.CancelFunc
		stopViewer := func() {
			if viewerCancel != nil {
				viewerCancel()
				viewerCancel = nil
			}
		}
		defer stopViewer()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := realtime.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			stopViewer()
			if parsed.Action == "unsubscribe" {
				hub.UpdateSubscription(client, realtime.Subscription{})
				continue
			}
			hub.UpdateSubscription(client, realtime.Subscription{
				BusinessID: parsed.BusinessID,
				EntryID:    parsed.EntryID,
			})
			if parsed.EntryID == "" {
				continue
			}

			viewerCtx, cancelViewer := context.WithCancel(ctx)
			viewerCancel = cancelViewer
			viewer := queue.NewViewerSession(entries, positions, time.Second, func(snap queue.Snapshot) {
				payload, err := json.Marshal(snapshotEnvelope{Type: "queue.snapshot", Payload: snap})
				if err != nil {
					return
				}
				_ = session.Send(string(payload))
			})
			go viewer.Run(viewerCtx, realtime.NewReconciler(hub, reconcileInterval), parsed.BusinessID, parsed.EntryID)
		}
	})
}
