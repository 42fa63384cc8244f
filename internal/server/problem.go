package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leasematch/leasematch/internal/listing"
	"github.com/leasematch/leasematch/internal/matching"
)

// ProblemDetails is an RFC 7807 problem response, trimmed to the fields this
// service uses.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func respondProblem(c *gin.Context, status int, title, detail string) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
	})
}

// respondError maps core errors onto HTTP status codes. Repository failures
// are not swallowed; they surface as 500s and are logged upstream by the
// recovery/logging middleware.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, listing.ErrNotFound), errors.Is(err, matching.ErrMatchNotFound):
		respondProblem(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondProblem(c, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		respondProblem(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
