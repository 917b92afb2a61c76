package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/resort-scheduler/internal/application"
	"github.com/example/resort-scheduler/internal/config"
	httptransport "github.com/example/resort-scheduler/internal/http"
	"github.com/example/resort-scheduler/internal/persistence"
	"github.com/example/resort-scheduler/internal/persistence/sqlite"
	"github.com/example/resort-scheduler/internal/recurrence"
	"github.com/example/resort-scheduler/internal/schedule"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("failed to load resort timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.NewConnectionPool(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	ruleRepo := sqlite.NewRuleRepository(pool)
	gridRepo := sqlite.NewGridRepository(pool)
	sessionRepo := sqlite.NewSessionRepository(pool)
	bookingRepo := sqlite.NewBookingRepository(pool)
	catalogRepo := sqlite.NewCatalogRepository(pool)
	userRepo := sqlite.NewUserRepository(pool)

	if err := seedAdminAccount(ctx, userRepo, idGenerator, logger); err != nil {
		logger.Error("failed to seed administrator account", "error", err)
		os.Exit(1)
	}

	expander := recurrence.NewExpander(location)
	resolver := schedule.NewGridResolver(location)

	scheduleService := application.NewScheduleServiceWithLogger(ruleRepo, gridRepo, catalogRepo, expander, resolver, logger)
	materializer := application.NewMaterializerServiceWithLogger(scheduleService, sessionRepo, catalogRepo, idGenerator, cfg.DefaultSessionCapacity, logger)
	availabilityService := application.NewAvailabilityServiceWithLogger(bookingRepo, sessionRepo, catalogRepo, logger)
	notifier := application.NewLogNotifier(logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, sessionRepo, catalogRepo, notifier, idGenerator, now, logger)
	gridService := application.NewGridServiceWithLogger(gridRepo, ruleRepo, scheduleService, logger)
	ruleService := application.NewRuleServiceWithLogger(ruleRepo, catalogRepo, scheduleService, idGenerator, logger)
	treatmentService := application.NewTreatmentServiceWithLogger(catalogRepo, idGenerator, location, logger)
	authService := application.NewAuthServiceWithLogger(userRepo, userRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(authService, logger),
		Schedules:    httptransport.NewScheduleHandler(scheduleService, gridService, materializer, location, logger),
		Sessions:     httptransport.NewSessionHandler(availabilityService, location, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, location, logger),
		Bookings:     httptransport.NewBookingHandler(bookingService, location, logger),
		Rules:        httptransport.NewRuleHandler(ruleService, location, logger),
		Treatments:   httptransport.NewTreatmentHandler(treatmentService, location, logger),
		Validator:    authService,
		Logger:       logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	materialize := func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		from := startOfDay(now().In(location))
		to := from.AddDate(0, 0, cfg.MaterializeWindowDays)
		result, err := materializer.Materialize(runCtx, from, to)
		if err != nil {
			logger.Error("scheduled materialization failed", "error", err)
			return
		}
		logger.Info("scheduled materialization completed",
			"from", from.Format("2006-01-02"),
			"to", to.Format("2006-01-02"),
			"upserts", result.Upserts,
			"skipped", result.Skipped)
	}

	scheduler := cron.New(cron.WithLocation(location))
	if _, err := scheduler.AddFunc(cfg.MaterializeCron, materialize); err != nil {
		logger.Error("failed to register materialization job", "spec", cfg.MaterializeCron, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Populate the session horizon immediately so a fresh deployment does
	// not wait for the first cron tick.
	go materialize()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("resort API listening", "addr", server.Addr, "timezone", cfg.Timezone)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// seedAdminAccount creates the initial administrator when the users table is
// empty. The password comes from RESORT_ADMIN_PASSWORD when set; otherwise a
// random one is generated and logged once so the operator can sign in.
func seedAdminAccount(ctx context.Context, users *sqlite.UserRepository, idGenerator func() string, logger *slog.Logger) error {
	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email := strings.TrimSpace(os.Getenv("RESORT_ADMIN_EMAIL"))
	if email == "" {
		email = "admin@resort.local"
	}
	password := os.Getenv("RESORT_ADMIN_PASSWORD")
	generated := false
	if password == "" {
		password = randomHex(12)
		generated = true
	}

	hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}

	admin := persistence.User{
		ID:           idGenerator(),
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: hash,
		IsAdmin:      true,
	}
	if _, err := users.CreateUser(ctx, admin); err != nil {
		return err
	}

	if generated {
		logger.Info("seeded administrator account with generated password",
			"email", email, "password", password)
	} else {
		logger.Info("seeded administrator account", "email", email)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
