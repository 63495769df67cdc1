package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title sightline API
// @version 0.1
// @description Dashboard endpoints and JSON API of the sightline visual change monitor.
// @contact.name sightline maintainers
// @contact.url https://github.com/raysh454/sightline
// @BasePath /
// @securityDefinitions.basic BasicAuth

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/raysh454/sightline/docs/swagger" // registers the OpenAPI document
)

func swaggerHandler() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))
}
