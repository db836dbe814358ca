package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"gorm.io/gorm"

	"github.com/imovelbot/wa-messaging-service/internal/cache"
	memoryCache "github.com/imovelbot/wa-messaging-service/internal/cache/memory"
	redisCache "github.com/imovelbot/wa-messaging-service/internal/cache/redis"
	"github.com/imovelbot/wa-messaging-service/internal/domain"
	httpHandler "github.com/imovelbot/wa-messaging-service/internal/handler/http"
	"github.com/imovelbot/wa-messaging-service/internal/limiter"
	"github.com/imovelbot/wa-messaging-service/internal/persistant/postgresql"
	"github.com/imovelbot/wa-messaging-service/internal/provider"
	listingRepo "github.com/imovelbot/wa-messaging-service/internal/repository/listing"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
	"github.com/imovelbot/wa-messaging-service/internal/service"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM)
	defer stop()

	// parse flags
	flag.Parse()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// initialize external dependencies
	db, sharedCache, err := initExternalDependencies(notifyCtx, config, logger)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	// init repositories
	msgRepo := messageRepo.NewRepository(db)
	listings := listingRepo.NewRepository(db)

	// select messaging provider once from config
	msgProvider, err := provider.NewFromConfig(provider.Config{
		Name:          config.Provider,
		APIBase:       config.WaApiBase,
		Token:         config.WaToken,
		PhoneNumberID: config.WaPhoneNumberID,
	}, logger.With(slog.String("component", "provider")))
	if err != nil {
		log.Fatalf("failed to initiate messaging provider: %v", err)
	}

	// init dispatcher with its guards
	window := service.NewWindowTracker(msgRepo)
	rateLimiter := limiter.New(sharedCache)
	dispatcher, err := service.NewDispatcher(
		msgRepo,
		rateLimiter,
		msgProvider,
		window,
		logger.With(slog.String("component", "dispatcher")),
	)
	if err != nil {
		log.Fatalf("failed to initiate dispatcher: %v", err)
	}

	// init funnel and inbound aggregator
	funnel := service.NewFunnel(msgRepo, listings, logger.With(slog.String("component", "funnel")))
	aggregator := service.NewAggregator(
		sharedCache,
		msgRepo,
		funnel,
		dispatcher,
		logger.With(slog.String("component", "aggregator")),
		config.AggregationWindow,
	)

	// populate database with sample listings
	if err := populateDatabase(db); err != nil {
		log.Fatalf("failed to populate db: %v", err)
	}

	// init http handler
	handler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", config.HttpPort),
		dispatcher,
		aggregator,
		msgRepo,
		sharedCache,
		logger.With(slog.String("component", "http")),
		config.DefaultTenant,
		config.WaVerifyToken,
		config.WaWebhookSecret,
	)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := handler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		aggregator.Stop()
		handler.Shutdown(shutDownCtx)
		postgresql.Close(db)
	})

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, config *Config, logger *slog.Logger) (*gorm.DB, cache.Cache, error) {
	// initialize database
	db, err := postgresql.Initialize(config.DbConnString, []any{
		&domain.Tenant{},
		&domain.Contact{},
		&domain.Conversation{},
		&domain.Message{},
		&domain.ConversationEvent{},
		&domain.SuppressedContact{},
		&domain.MessageLog{},
		&domain.Property{},
		&domain.Lead{},
		&domain.Inquiry{},
	})
	if err != nil {
		return nil, nil, err
	}

	// initialize cache; fall back to the in-process cache when redis is
	// unreachable, degrading limiter correctness to single-process scope
	var sharedCache cache.Cache
	sharedCache, err = redisCache.NewRedisCache(ctx, config.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-process cache", "error", err.Error())
		sharedCache = memoryCache.NewMemoryCache()
	}

	return db, sharedCache, nil
}

func populateDatabase(db *gorm.DB) error {
	var propCount int64
	if err := db.Model(&domain.Property{}).Count(&propCount).Error; err != nil {
		return err
	}
	if propCount == 0 {
		properties := []domain.Property{
			{TenantID: 1, Title: "Apartamento 2 dorm. próximo ao metrô", Type: domain.PropertyApartment, Purpose: domain.PurposeSale, Price: 320000, AddressCity: "São Paulo", AddressState: "SP", Bedrooms: 2, IsActive: true},
			{TenantID: 1, Title: "Apartamento 3 dorm. com varanda", Type: domain.PropertyApartment, Purpose: domain.PurposeSale, Price: 450000, AddressCity: "São Paulo", AddressState: "SP", Bedrooms: 3, IsActive: true},
			{TenantID: 1, Title: "Casa térrea com quintal", Type: domain.PropertyHouse, Purpose: domain.PurposeSale, Price: 520000, AddressCity: "Campinas", AddressState: "SP", Bedrooms: 3, IsActive: true},
			{TenantID: 1, Title: "Apartamento 1 dorm. mobiliado", Type: domain.PropertyApartment, Purpose: domain.PurposeRent, Price: 2500, AddressCity: "São Paulo", AddressState: "SP", Bedrooms: 1, IsActive: true},
			{TenantID: 1, Title: "Apartamento 2 dorm. reformado", Type: domain.PropertyApartment, Purpose: domain.PurposeRent, Price: 3200, AddressCity: "São Paulo", AddressState: "SP", Bedrooms: 2, IsActive: true},
			{TenantID: 1, Title: "Casa em condomínio fechado", Type: domain.PropertyHouse, Purpose: domain.PurposeRent, Price: 4800, AddressCity: "Campinas", AddressState: "SP", Bedrooms: 4, IsActive: true},
		}
		if err := db.Create(&properties).Error; err != nil {
			return err
		}
	}

	return nil
}
