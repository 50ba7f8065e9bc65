package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabemono-pos/api/internal/config"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/events"
	"github.com/tabemono-pos/api/internal/kafka"
	"github.com/tabemono-pos/api/internal/media"
	"github.com/tabemono-pos/api/internal/redisx"
	"github.com/tabemono-pos/api/internal/router"
	"github.com/tabemono-pos/api/internal/ws"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Println("Connected to database")

	g, gctx := errgroup.WithContext(ctx)

	hub := ws.NewHub()
	g.Go(func() error { return hub.Run(gctx) })

	notify := events.Fanout{hub}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024)
		g.Go(func() error { return producer.Run(gctx) })
		notify = append(notify, producer)
		log.Printf("Publishing events to kafka topic %s", cfg.KafkaTopic)
	}

	deps := router.Deps{Notify: notify}

	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("WARN: redis ping %s: %v", cfg.RedisAddr, err)
		}
		deps.Idempotency = redisx.NewIdempotency(rdb)
	} else {
		log.Println("WARN: REDIS_ADDR not set, idempotency keys disabled")
	}

	if cfg.CloudinaryCloudName != "" {
		cld, err := media.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			return err
		}
		deps.Images = cld
	}

	r := router.New(cfg, database.New(pool), pool, hub, deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Println("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
