package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, migrationHandler *MigrationHandler, statusHandler *StatusHandler) {
	api := server.Group("/api/migration")
	api.POST("/sap-hana-to-snowflake", migrationHandler.StartMigration)
	api.GET("/status/:file_uuid", statusHandler.GetStatus)
}
