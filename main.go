package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexbotov/roundengine/internal/api"
	"github.com/alexbotov/roundengine/internal/audit"
	"github.com/alexbotov/roundengine/internal/config"
	"github.com/alexbotov/roundengine/internal/control"
	"github.com/alexbotov/roundengine/internal/database"
	"github.com/alexbotov/roundengine/internal/game"
	"github.com/alexbotov/roundengine/internal/history"
	"github.com/alexbotov/roundengine/internal/jackpot"
	"github.com/alexbotov/roundengine/internal/ledger"
	"github.com/alexbotov/roundengine/internal/rng"
	"github.com/alexbotov/roundengine/internal/store"
	"github.com/alexbotov/roundengine/pkg/walletclient"
)

func main() {
	fmt.Println("Round Engine")

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	auditSvc := audit.New(db.DB)

	controlSvc := control.New(db.DB, auditSvc)
	if err := controlSvc.LoadState(ctx); err != nil {
		log.Fatalf("control state: %v", err)
	}

	rngSvc := rng.New()
	if _, err := rngSvc.HealthCheck(); err != nil {
		log.Fatalf("rng health: %v", err)
	}

	tables, err := config.LoadTables(cfg.Game.TablesPath)
	if err != nil {
		log.Fatalf("game tables: %v", err)
	}

	jackpotStore := jackpot.NewStore(db.DB)
	poolAmount, err := jackpotStore.LoadAmount(ctx, tables.Reel.JackpotFloor)
	if err != nil {
		log.Fatalf("jackpot state: %v", err)
	}
	pool := jackpot.NewPool(tables.Reel.JackpotFloor, tables.Reel.JackpotContribution)
	pool.Restore(poolAmount)

	var ledgerSvc game.Ledger
	if cfg.Wallet.BaseURL != "" {
		walletCfg := walletclient.DefaultConfig()
		walletCfg.BaseURL = cfg.Wallet.BaseURL
		walletCfg.APIKey = cfg.Wallet.APIKey
		walletCfg.APISecret = cfg.Wallet.APISecret
		walletCfg.SiteCode = cfg.Wallet.SiteCode
		ledgerSvc = ledger.NewRemote(walletclient.New(walletCfg), cfg.Game.DefaultCurrency)
	} else {
		ledgerSvc = ledger.NewPostgres(db.DB, auditSvc, cfg.Game.DefaultCurrency)
	}
	rounds := store.NewPostgres(db.DB)
	recorder := history.NewRecorder(db.DB)
	hub := api.NewHub()

	engine := game.New(rngSvc, tables, rounds, ledgerSvc, pool, auditSvc, &cfg.Game,
		game.MultiSink{recorder, hub}, controlSvc, jackpotStore)

	handler := api.New(engine, rngSvc, ledgerSvc, recorder, controlSvc, hub, cfg)
	router := handler.SetupRouter()
	router.NotFoundHandler = http.HandlerFunc(api.NotFoundHandler)

	// Checkpoint the pool so a crash loses at most a few seconds of
	// contributions; awards themselves are recorded synchronously.
	go persistPool(ctx, pool, jackpotStore)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := jackpotStore.SaveAmount(shutdownCtx, pool.Amount()); err != nil {
		log.Printf("jackpot save: %v", err)
	}
}

func persistPool(ctx context.Context, pool *jackpot.Pool, jackpotStore *jackpot.Store) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := jackpotStore.SaveAmount(ctx, pool.Amount()); err != nil {
				log.Printf("jackpot save: %v", err)
			}
		}
	}
}
