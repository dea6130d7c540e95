// Package echo exposes the verification callback over HTTP. The process
// hosting it is stateless: every request resolves against the shared
// registry and link store.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wikilink-dev/wikilinkd/internal/metrics"
	"github.com/wikilink-dev/wikilinkd/log"
	"github.com/wikilink-dev/wikilinkd/services"
)

// CallbackAPI holds the HTTP surface dependencies.
type CallbackAPI struct {
	service *services.LinkService
	logger  log.Logger
}

// NewCallbackAPI initializes the callback API.
func NewCallbackAPI(service *services.LinkService, logger log.Logger) *CallbackAPI {
	return &CallbackAPI{service: service, logger: logger}
}

// RegisterRoutes registers the callback routes. The provider redirects with
// GET; POST is accepted for providers that form-post the result.
func (a *CallbackAPI) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.GET("/callback", a.CallbackHandler)
	e.POST("/callback", a.CallbackHandler)
	e.GET("/healthz", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// CallbackHandler handles one verification redirect. Every branch resolves
// to a defined page; malformed input never aborts ungracefully, and a
// replayed redirect always lands on the idempotent already-linked page.
func (a *CallbackAPI) CallbackHandler(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		// Providers that only support one round-trip parameter carry the
		// token in the OAuth state field.
		token = c.QueryParam("state")
	}
	code := c.QueryParam("code")

	outcome, err := a.service.HandleCallback(c.Request().Context(), token, code)
	if err != nil {
		a.logger.Error(c.Request().Context(), "callback failed", err, map[string]interface{}{
			"outcome": outcome.String(),
		})
	}
	if metrics.CallbackOutcomesTotal != nil {
		metrics.CallbackOutcomesTotal.WithLabelValues(outcome.String()).Inc()
	}

	status, page := pageFor(outcome)
	return c.HTML(status, page)
}

// HealthHandler reports process liveness.
func (a *CallbackAPI) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func pageFor(outcome services.CallbackOutcome) (int, string) {
	switch outcome {
	case services.OutcomeLinked:
		return http.StatusOK, successPage
	case services.OutcomeAlreadyLinked:
		return http.StatusOK, alreadyLinkedPage
	case services.OutcomeExpiredToken:
		return http.StatusGone, expiredPage
	case services.OutcomeProviderFailure:
		return http.StatusBadGateway, providerFailurePage
	case services.OutcomeStorageFailure:
		return http.StatusInternalServerError, storageFailurePage
	default:
		return http.StatusBadRequest, invalidPage
	}
}

const (
	successPage = `<!DOCTYPE html><html><head><title>Account linked</title></head>
<body><h1>Account linked</h1>
<p>Your wiki account is now linked. You can close this page and return to the chat.</p>
</body></html>`

	alreadyLinkedPage = `<!DOCTYPE html><html><head><title>Already linked</title></head>
<body><h1>Already linked</h1>
<p>This account is already linked. No further action is needed.</p>
</body></html>`

	expiredPage = `<!DOCTYPE html><html><head><title>Link request expired</title></head>
<body><h1>Link request expired</h1>
<p>This link request has expired. Please start the linking flow again from the chat.</p>
</body></html>`

	invalidPage = `<!DOCTYPE html><html><head><title>Invalid link request</title></head>
<body><h1>Invalid link request</h1>
<p>This link request is not valid. Please start the linking flow again from the chat.</p>
</body></html>`

	providerFailurePage = `<!DOCTYPE html><html><head><title>Verification unavailable</title></head>
<body><h1>Verification temporarily unavailable</h1>
<p>We could not verify your wiki account right now. Your request is still valid; please try the link again in a moment.</p>
</body></html>`

	storageFailurePage = `<!DOCTYPE html><html><head><title>Something went wrong</title></head>
<body><h1>Something went wrong</h1>
<p>An internal error occurred while saving your link. Please try again later.</p>
</body></html>`
)
