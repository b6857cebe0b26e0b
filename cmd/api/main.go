package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"selfbooking/cmd/internal/booking"
	"selfbooking/cmd/internal/config"
	"selfbooking/cmd/internal/domain/sqlite"
	"selfbooking/cmd/internal/domain/sqlite/repository"
	cognitoclient "selfbooking/cmd/internal/integration/aws/cognito"
	"selfbooking/cmd/internal/middleware"
	"selfbooking/cmd/internal/notify"
	"selfbooking/cmd/internal/routes"
	"selfbooking/cmd/internal/service"
	"selfbooking/cmd/internal/utils/validators"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Warn("no .env file loaded, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration ", err)
	}

	db, err := sqlite.Init(cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database ", err)
	}

	cogClient, err := cognitoclient.InitCognitoClient(cfg.Cognito)
	if err != nil {
		log.Fatal("failed to initialize cognito client ", err)
	}

	// Getting repositories
	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	blackoutRepo := repository.NewBlackoutRepository(db)

	notifier, drain := newNotifier(cfg.RabbitMQ)
	engine, err := newEngine(cfg.Booking, bookingRepo, notifier)
	if err != nil {
		log.Fatal("failed to configure booking engine ", err)
	}

	validate := validator.New()
	if err := validators.Register(validate, engine.Slots()); err != nil {
		log.Fatal("failed to register validators ", err)
	}

	// Getting services
	userService := service.NewUserService(userRepo, validate, cogClient)
	bookingService := service.NewBookingService(engine, validate, cfg.Booking.CommitAttempts)
	adminService := service.NewAdminService(engine, blackoutRepo, validate)

	// Getting routes
	userRoutes := routes.NewUserDefault(userService)
	bookingRoutes := routes.NewBookingDefault(bookingService)
	adminRoutes := routes.NewAdminDefault(adminService)

	e := echo.New()
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())

	auth := middleware.Auth(cogClient, userService, nil)
	limit := middleware.RateLimit(cfg.RateLimit, newRedis(cfg.Redis))

	// Users
	e.POST("/api/users", userRoutes.CreateUser, limit)
	e.POST("/api/users/login", userRoutes.CreateLogin, limit)
	e.POST("/api/users/verify", userRoutes.VerifySignup, limit)
	e.GET("/api/users/:id", userRoutes.GetUser, auth)

	// Bookings
	api := e.Group("/api", auth)
	api.GET("/bookings", bookingRoutes.GetBookings)
	api.POST("/bookings", bookingRoutes.CreateBooking, limit)
	api.PUT("/bookings/:id", bookingRoutes.RescheduleBooking, limit)
	api.DELETE("/bookings/:id", bookingRoutes.DeleteBooking, limit)
	api.POST("/bookings/series", bookingRoutes.CreateSeries, limit)
	api.GET("/bookings/series/:group", bookingRoutes.GetSeries)
	api.DELETE("/bookings/series/:group", bookingRoutes.DeleteSeries, limit)

	// Pseudo-entity "Calendar" to check which days and slots take bookings
	api.GET("/calendar", bookingRoutes.GetCalendar)
	api.GET("/calendar/month", bookingRoutes.GetCalendarMonth)

	// Administration
	admin := api.Group("/admin", middleware.RequireAdmin)
	admin.GET("/users", userRoutes.GetUsers)
	admin.POST("/users/:id/approval", adminRoutes.SetApproval)
	admin.PUT("/users/:id/sessions", adminRoutes.SetSessions)
	admin.GET("/users/:id/ledger", adminRoutes.GetLedger)
	admin.GET("/blackouts", adminRoutes.GetBlackouts)
	admin.POST("/blackouts", adminRoutes.CreateBlackout)
	admin.DELETE("/blackouts/:id", adminRoutes.DeleteBlackout)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Errorf("failed to shutdown server: %v", err)
		}
	}()

	if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal(err)
	}
	drain()
}

func newEngine(cfg config.Booking, repo booking.Repository, notifier booking.Notifier) (*booking.Engine, error) {
	days, err := cfg.Weekdays()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return booking.New(repo, booking.Config{
		Slots:        cfg.Slots,
		OpenWeekdays: days,
		Location:     loc,
		Validator: booking.Rules{
			MinLeadTime:  cfg.MinLeadTime,
			MaxAdvance:   cfg.MaxAdvance,
			CancelNotice: cfg.CancelNotice,
		},
		Notifier:       notifier,
		DefaultGrant:   cfg.DefaultSessions,
		MaxOccurrences: cfg.MaxOccurrences,
	})
}

// newNotifier also returns a func that waits for queued deliveries.
func newNotifier(cfg config.RabbitMQ) (booking.Notifier, func()) {
	if cfg.URL == "" {
		log.Info("RABBITMQ_URL not set, booking events go to the log")
		return notify.LogNotifier{}, func() {}
	}
	publisher := notify.NewPublisher(cfg)
	async := notify.NewAsync(publisher, cfg.MaxInFlight, 2*publisher.Timeout())
	return async, async.Wait
}

// newRedis returns nil when no address is configured, which turns rate
// limiting off.
func newRedis(cfg config.Redis) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("redis at %s unreachable, rate limiter will fail open: %v", cfg.Addr, err)
	}
	return rdb
}
