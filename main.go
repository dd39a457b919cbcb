package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-engine/internal/api"
	"trading-engine/internal/bus"
	"trading-engine/internal/engine"
	"trading-engine/internal/gateway"
	"trading-engine/internal/market"
	"trading-engine/internal/risk"
	"trading-engine/pkg/config"
	"trading-engine/pkg/i18n"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an operator JWT for the given name and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}
	i18n.SetLanguage(i18n.Language(cfg.Language))

	if *issueToken != "" {
		token, err := api.IssueToken(*issueToken, cfg.JWTSecret, *tokenTTL)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	log.Println(i18n.Get("Starting"))
	log.Printf(i18n.Get("ConfigLoaded"), cfg.Port, cfg.GRPCPort)

	overflow, err := bus.ParseOverflowPolicy(cfg.BusOverflowPolicy)
	if err != nil {
		log.Fatalf(i18n.Get("ConfigLoadFailed"), err)
	}

	eng, err := engine.New(engine.Config{
		Bus: bus.Config{
			TimerInterval: cfg.BusTimerInterval,
			QueueSize:     cfg.BusQueueSize,
			Overflow:      overflow,
		},
		Gateway: gateway.Config{
			OrderRateLimit: cfg.OrderRateLimit,
			OrderRateBurst: cfg.OrderRateBurst,
			SymbolTTL:      cfg.SymbolTTL,
		},
		Risk: risk.Config{
			MaxNotional:    cfg.RiskMaxNotional,
			MaxOpenOrders:  cfg.RiskMaxOpenOrders,
			MaxDailyTrades: cfg.RiskMaxDailyTrades,
		},
		Venue: cfg.Venue,
		Paper: gateway.PaperConfig{
			FeeRate:     cfg.PaperFeeRate,
			SlippageBps: cfg.PaperSlippageBps,
		},
		Symbols:     cfg.Symbols,
		UseMockFeed: cfg.UseMockFeed,
		Version:     cfg.Version,
	})
	if err != nil {
		log.Fatalf("engine init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Connect(ctx); err != nil {
		log.Fatalf("gateway connect: %v", err)
	}

	var feed *market.MockFeed
	if cfg.UseMockFeed {
		feed = &market.MockFeed{
			Bus:      eng,
			Symbols:  cfg.Symbols,
			Interval: cfg.MockFeedInterval,
		}
		feed.Start(ctx)
	}

	// API
	server := api.NewServer(eng, api.Options{
		JWTSecret:   cfg.JWTSecret,
		Broadcaster: eng.Broadcaster(),
		Metrics:     eng.Metrics(),
	})
	httpServer := server.HTTPServer(":" + cfg.Port)
	go func() {
		log.Printf(i18n.Get("ServerListening"), cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf(i18n.Get("APIServerError"), err)
		}
	}()

	// gRPC health
	healthSrv := api.NewHealthServer(eng)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatalf(i18n.Get("GRPCServerError"), err)
	}
	go healthSrv.Watch(ctx, time.Second)
	go func() {
		if err := healthSrv.Serve(lis); err != nil {
			log.Printf(i18n.Get("GRPCServerError"), err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println(i18n.Get("ShuttingDown"))

	// Stop producers first, then the engine.
	cancel()
	if feed != nil {
		feed.Wait()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf(i18n.Get("APIServerError"), err)
	}
	healthSrv.Stop()

	eng.Disconnect()
	log.Println(i18n.Get("ShutdownComplete"))
}
