package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nftmarket-api/internal/cache"
	"nftmarket-api/internal/config"
	"nftmarket-api/internal/handler"
	"nftmarket-api/internal/middleware"
	"nftmarket-api/internal/repository"
	"nftmarket-api/internal/router"
	"nftmarket-api/internal/service"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting NFT Market API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize ledger repository based on config
	var repo repository.LedgerRepository
	switch cfg.LedgerDB.Type {
	case "mysql":
		mysqlRepo, err := repository.NewMySQLLedgerRepository(cfg.LedgerDB.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		repo = mysqlRepo
		log.Println("MySQL ledger repository initialized")
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresLedgerRepository(cfg.LedgerDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		repo = pgRepo
		log.Println("PostgreSQL ledger repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteLedgerRepository(cfg.LedgerDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		repo = sqliteRepo
		log.Println("SQLite ledger repository initialized")
	}
	defer repo.Close()

	// Initialize read cache based on config
	var readCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory cache: %v", err)
			readCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			readCache = redisCache
			log.Println("Redis cache initialized")
		}
	default: // memory
		readCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}

	// Parse marketplace policies
	custodyStyle, err := service.ParseCustodyStyle(cfg.Market.CustodyStyle)
	if err != nil {
		log.Fatalf("Invalid custody style: %v", err)
	}
	listingPolicy, err := service.ParseListingPolicy(cfg.Market.ListingPolicy)
	if err != nil {
		log.Fatalf("Invalid listing policy: %v", err)
	}

	// Initialize services
	itemService := service.NewItemService(repo)
	marketService := service.NewMarketService(repo, itemService, service.MarketOptions{
		CustodyStyle:  custodyStyle,
		ListingPolicy: listingPolicy,
	})
	accountService := service.NewAccountService(repo)
	log.Printf("Market service initialized (custody=%s policy=%s)", custodyStyle, listingPolicy)

	// Initialize handlers
	healthHandler := handler.New()
	marketHandler := handler.NewMarketHandler(marketService, readCache, cfg.Cache.TTL)
	itemHandler := handler.NewItemHandler(itemService, readCache, cfg.Cache.TTL)
	accountHandler := handler.NewAccountHandler(accountService)
	adminHandler := handler.NewAdminHandler(repo, cfg.LedgerDB.Type)

	// Auth middleware guards the admin surface (faucet, stats)
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		MarketHandler:  marketHandler,
		ItemHandler:    itemHandler,
		AccountHandler: accountHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
