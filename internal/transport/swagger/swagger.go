package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

func Handler() http.Handler {
	// Swagger UI backed by the spec at api/openapi.yml
	return httpSwagger.Handler(
		httpSwagger.URL("/openapi.yml"), // spec is served at root by the router
	)
}
