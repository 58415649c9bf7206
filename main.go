package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"github.com/maddonsteve2-blip/traderefer-sub001/config"
	"github.com/maddonsteve2-blip/traderefer-sub001/middleware"
	"github.com/maddonsteve2-blip/traderefer-sub001/repositories"
	"github.com/maddonsteve2-blip/traderefer-sub001/routes"
	"github.com/maddonsteve2-blip/traderefer-sub001/services"
	"github.com/maddonsteve2-blip/traderefer-sub001/utils"
	"github.com/maddonsteve2-blip/traderefer-sub001/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()
	store := repositories.NewMongoStore(client, config.DBName())

	// Create WebSocket hub for the ops alert stream
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Alerts fan out to the dashboard stream and best-effort email
	alerts := services.MultiAlerter{wsHub, utils.NewMailAlerter()}

	// Wire up the settlement engine
	tierPolicy, err := services.TierPolicyFromEnv()
	if err != nil {
		log.Fatal("invalid tier policy configuration:", err)
	}
	feeResolver := services.NewFeeResolver(services.DefaultMinFeeCents)
	walletService := services.NewWalletService(store, alerts)
	settlementService := services.NewSettlementService(store, feeResolver, tierPolicy, alerts)
	leadService := services.NewLeadService(store, settlementService)
	referrerService := services.NewReferrerService(store, tierPolicy, feeResolver)
	paymentService := services.NewPaymentService()
	idemCache := services.NewIdempotencyCache(redisClient)
	bonusService := services.NewBonusService(store, paymentService, idemCache)

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Settlement engine is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	e.Use(httpsRedirect())

	// Register routes
	routes.RegisterLeadRoutes(e, leadService)
	routes.RegisterReferrerRoutes(e, referrerService)
	routes.RegisterWalletRoutes(e, walletService, bonusService)
	routes.RegisterAdminRoutes(e, settlementService, walletService, leadService, paymentService, wsHub)

	// Scheduled maintenance: daily lead expiry sweep and nightly ledger
	// reconciliation.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("15 2 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		expired, err := leadService.ExpireUnconfirmed(ctx, time.Now())
		if err != nil {
			log.Printf("lead expiry sweep failed: %v", err)
			return
		}
		log.Printf("lead expiry sweep complete: %d expired", expired)
	}); err != nil {
		log.Fatal("failed to schedule lead expiry sweep:", err)
	}
	if _, err := scheduler.AddFunc("45 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		checked, faults := walletService.ReconcileAll(ctx)
		log.Printf("ledger reconciliation complete: %d owners checked, %d faults", checked, len(faults))
	}); err != nil {
		log.Fatal("failed to schedule ledger reconciliation:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

func httpsRedirect() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("X-Forwarded-Proto") == "http" {
				return c.Redirect(301, "https://"+c.Request().Host+c.Request().RequestURI)
			}
			return next(c)
		}
	}
}
