// Package server is the webhook gateway between the chat transport
// and the authoring machine.
package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lunaris/capsuled/internal/authoring"
	"github.com/lunaris/capsuled/internal/database"
	"github.com/lunaris/capsuled/internal/server/middlewares"
	"github.com/lunaris/capsuled/internal/transport/telegram"
	"github.com/sirupsen/logrus"
)

// webhookSecretHeader carries the shared webhook secret set when the
// webhook was registered with the transport.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// An IOC is an Inversion Of Control pattern used to init the server package.
type IOC struct {
	Version       string
	Database      database.Client
	Manager       *authoring.Manager
	Transport     telegram.Client
	WebhookSecret string
	Logger        logrus.FieldLogger
}

// EchoEngine instantiates the web server.
func EchoEngine(ctrl IOC) *echo.Echo {
	engine := echo.New()
	engine.HideBanner = true
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	////////////
	// Router //
	////////////

	router := engine.Group("")

	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	router.GET("/healthz", func(c echo.Context) error {
		if _, err := ctrl.Database.FindScheduledCapsules(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status": "degraded",
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status": "ok",
		})
	})

	gw := &gateway{
		manager:   ctrl.Manager,
		transport: ctrl.Transport,
		secret:    ctrl.WebhookSecret,
		logger:    ctrl.Logger,
	}
	router.POST("/updates", gw.Updates)

	return engine
}

type gateway struct {
	manager   *authoring.Manager
	transport telegram.Client
	secret    string
	logger    logrus.FieldLogger
}

// Updates receives one webhook update, routes it through the authoring
// machine and pushes the replies back through the transport. It always
// acknowledges readable payloads so the transport does not retry a
// turn that already ran.
func (g *gateway) Updates(c echo.Context) error {
	if g.secret != "" {
		header := c.Request().Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(header), []byte(g.secret)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook secret")
		}
	}

	var u update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed update")
	}

	in, ok := u.input()
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}

	ctx := c.Request().Context()
	replies, err := g.manager.Handle(ctx, in)
	if err != nil {
		// Refusing the turn makes the transport redeliver it once the
		// store is reachable again.
		return err
	}

	for _, r := range replies {
		choices := make([]telegram.Choice, 0, len(r.Choices))
		for _, choice := range r.Choices {
			choices = append(choices, telegram.Choice{Label: choice.Label, Data: choice.ID})
		}
		if err := g.transport.SendPrompt(ctx, in.Sender.Address, r.Text, choices); err != nil {
			g.logger.WithError(err).Error("could not send reply")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// PrintRoutes prints the Echo engine exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
