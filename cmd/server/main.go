package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/mamadbah2/clinic-webhook/internal/async"
	"github.com/mamadbah2/clinic-webhook/internal/config"
	"github.com/mamadbah2/clinic-webhook/internal/repository/boltdb"
	"github.com/mamadbah2/clinic-webhook/internal/repository/mongodb"
	"github.com/mamadbah2/clinic-webhook/internal/repository/sheets"
	"github.com/mamadbah2/clinic-webhook/internal/scheduler"
	"github.com/mamadbah2/clinic-webhook/internal/server/handlers"
	"github.com/mamadbah2/clinic-webhook/internal/server/router"
	bookingsvc "github.com/mamadbah2/clinic-webhook/internal/service/bookings"
	whatsappsvc "github.com/mamadbah2/clinic-webhook/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/clinic-webhook/pkg/clients/whatsapp"
	"github.com/mamadbah2/clinic-webhook/pkg/logger"
	"github.com/mamadbah2/clinic-webhook/web"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	baseLogger.Info("configuration loaded",
		zap.Bool("whatsapp_token_loaded", cfg.WhatsApp.AccessToken != ""),
		zap.Bool("phone_number_id_loaded", cfg.WhatsApp.PhoneNumberID != ""),
		zap.Bool("app_secret_loaded", cfg.WhatsApp.AppSecret != ""),
		zap.Bool("mark_as_read", cfg.WhatsApp.MarkAsRead),
		zap.String("booking_store", cfg.Bookings.Store))

	if cfg.WhatsApp.VerifyTokenDefaulted {
		baseLogger.Warn("VERIFY_TOKEN not set, using the built-in default token")
	}
	if cfg.WhatsApp.AccessToken == "" || cfg.WhatsApp.PhoneNumberID == "" {
		baseLogger.Warn("WHATSAPP_TOKEN or PHONE_NUMBER_ID missing, outbound replies will fail")
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 20*time.Second)
	store, closeStore := openBookingStore(initCtx, cfg, baseLogger)
	defer closeStore()

	bookings := bookingsvc.NewService(store, cfg.Bookings.CacheTTL, baseLogger.Named("svc.bookings"))
	bookings.Init(initCtx)
	cancelInit()

	tasks := async.NewGroup(async.DefaultTimeout, baseLogger.Named("async"))

	whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
	messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, bookings, baseLogger.Named("svc.whatsapp"))
	webhookHandler := handlers.NewWebhookHandler(messagingSvc, tasks, baseLogger.Named("handlers.whatsapp"))
	bookingHandler := handlers.NewBookingHandler(bookings, web.DashboardHTML, baseLogger.Named("handlers.bookings"))
	engine := router.New(webhookHandler, bookingHandler, baseLogger.Named("router"))

	if sched := startScheduler(cfg, bookings, baseLogger.Named("scheduler")); sched != nil {
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := tasks.Wait(shutdownCtx); err != nil {
		baseLogger.Warn("background tasks still running at shutdown", zap.Error(err))
	}
}

// startScheduler runs the booking refresh job. Failures are logged and leave
// the cache refreshing on read only.
func startScheduler(cfg *config.Config, bookings scheduler.BookingRefresher, log *zap.Logger) *scheduler.Scheduler {
	if cfg.Bookings.Store == config.BookingStoreNone {
		return nil
	}

	sched, err := scheduler.NewScheduler(cfg.Bookings, bookings, log)
	if err != nil {
		log.Error("booking refresh disabled", zap.Error(err))
		return nil
	}
	if err := sched.Start(); err != nil {
		log.Error("booking refresh disabled", zap.Error(err))
		sched.Stop()
		return nil
	}
	return sched
}

// openBookingStore builds the configured store. Invalid settings and
// initialization failures are logged and replaced by a store that reports
// itself unavailable, so the webhook keeps serving.
func openBookingStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (bookingsvc.Store, func()) {
	noop := func() {}

	if err := cfg.ValidateBookings(); err != nil {
		log.Warn("booking store misconfigured, bookings disabled", zap.Error(err))
		return bookingsvc.UnavailableStore{Err: err}, noop
	}

	switch cfg.Bookings.Store {
	case config.BookingStoreSheets:
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, log.Named("repo.sheets"))
		if err != nil {
			log.Warn("sheets booking store unavailable", zap.Error(err))
			return bookingsvc.UnavailableStore{Err: err}, noop
		}
		return repo, noop

	case config.BookingStoreMongoDB:
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			log.Warn("mongodb booking store unavailable", zap.Error(err))
			return bookingsvc.UnavailableStore{Err: err}, noop
		}
		return repo, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Close(closeCtx); err != nil {
				log.Error("failed to close mongodb connection", zap.Error(err))
			}
		}

	case config.BookingStoreBolt:
		store, err := boltdb.NewBoltStore(cfg.Bolt.Path)
		if err != nil {
			log.Warn("bolt booking store unavailable", zap.Error(err))
			return bookingsvc.UnavailableStore{Err: err}, noop
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close bolt store", zap.Error(err))
			}
		}

	default:
		return bookingsvc.NopStore{}, noop
	}
}
