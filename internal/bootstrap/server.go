package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/juju/loggo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	app "github.com/mohammadpnp/hana-migration/internal/application/migration"
	httpecho "github.com/mohammadpnp/hana-migration/internal/interfaces/http/echo"
)

var httpLogger = loggo.GetLogger("hanamigration.http.access")

type ServerDeps struct {
	StartMigration     app.StartMigration
	GetMigrationStatus app.GetMigrationStatus
	// Ping checks the status store for /healthz.
	Ping     func(ctx context.Context) error
	Gatherer prometheus.Gatherer
}

func NewHTTPServer(deps ServerDeps) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.HidePort = true

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*"},
	}))
	server.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				httpLogger.Warningf("%s %s -> %d (%s) id=%s: %v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			httpLogger.Infof("%s %s -> %d (%s) id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	httpecho.RegisterRoutes(server,
		httpecho.NewMigrationHandler(deps.StartMigration),
		httpecho.NewStatusHandler(deps.GetMigrationStatus),
	)

	server.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to the SAP HANA to Snowflake migration API"})
	})

	server.GET("/healthz", func(c echo.Context) error {
		if deps.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	server.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return server
}
