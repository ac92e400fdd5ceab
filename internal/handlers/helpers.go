package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"motors-client/internal/api"
	"motors-client/internal/middleware"
	"motors-client/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	return observability.RequestID(c)
}

func userIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// upstreamStatus maps a REST collaborator error onto a gateway status. Client
// errors pass through; everything else is a bad gateway.
func upstreamStatus(err error) (int, string) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status, apiErr.Message
		}
		return http.StatusBadGateway, apiErr.Message
	}
	return http.StatusBadGateway, err.Error()
}
