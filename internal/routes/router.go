package routes

import (
	"net/http"

	"sensor-fleet-server/internal/config"
	"sensor-fleet-server/internal/credential"
	"sensor-fleet-server/internal/database"
	"sensor-fleet-server/internal/delivery/http/handler"
	"sensor-fleet-server/internal/infrastructure/database/postgres"
	"sensor-fleet-server/internal/logger"
	"sensor-fleet-server/internal/middleware"
	"sensor-fleet-server/internal/storage"
	"sensor-fleet-server/internal/usecase/firmware"
	"sensor-fleet-server/internal/usecase/ingest"
	"sensor-fleet-server/internal/usecase/ota"
	"sensor-fleet-server/internal/usecase/registry"

	"github.com/gin-gonic/gin"
)

// Services bundles the wired use cases so main can hand the ingestion
// service to the MQTT bridge as well.
type Services struct {
	Registry *registry.Service
	Ingest   *ingest.Service
	OTA      *ota.Service
	Firmware *firmware.Service
}

func SetupRoutes(cfg *config.Config, db *database.Database, store *storage.FirmwareStore) (*gin.Engine, *Services) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	deviceRepo := postgres.NewDeviceRepository(db.DB)
	readingRepo := postgres.NewReadingRepository(db.DB)
	firmwareRepo := postgres.NewFirmwareRepository(db.DB)
	updateRepo := postgres.NewDeviceUpdateRepository(db.DB)

	credentials := credential.NewStore()

	registryService := registry.NewService(deviceRepo, credentials, cfg.Device.OnlineThresholdMinutes)
	ingestService := ingest.NewService(registryService, readingRepo)
	otaService := ota.NewService(deviceRepo, firmwareRepo, updateRepo, store)
	firmwareService := firmware.NewService(firmwareRepo, store)

	readingsHandler := handler.NewReadingsHandler(ingestService, readingRepo)
	otaHandler := handler.NewOTAHandler(otaService)
	deviceAdminHandler := handler.NewDeviceAdminHandler(registryService)
	firmwareAdminHandler := handler.NewFirmwareAdminHandler(firmwareService)

	rateLimiter := middleware.NewDeviceRateLimiter(cfg.RateLimit.DeviceRPS, cfg.RateLimit.DeviceBurst)

	api := router.Group("/api")
	{
		// Device-facing endpoints authenticate through credentials in
		// the payload; only ingestion sits behind the per-device limiter.
		device := api.Group("")
		device.Use(rateLimiter.Middleware())
		{
			readingsHandler.RegisterDeviceRoutes(device)
		}

		otaHandler.RegisterDeviceRoutes(api)

		admin := api.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware(cfg.Admin.APIToken))
		{
			deviceAdminHandler.RegisterAdminRoutes(admin)
			firmwareAdminHandler.RegisterAdminRoutes(admin)
			readingsHandler.RegisterAdminRoutes(admin)
		}
	}

	logger.Info("All routes initialized")

	return router, &Services{
		Registry: registryService,
		Ingest:   ingestService,
		OTA:      otaService,
		Firmware: firmwareService,
	}
}
