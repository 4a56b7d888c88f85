package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/i474232898/snow-patrol/internal/store"
	"github.com/i474232898/snow-patrol/internal/weather"
)

const serviceName = "snow-patrol"

var validate = validator.New()

// PollHistory is the read side of the poll store.
type PollHistory interface {
	Latest() (store.PollRecord, error)
	LastSnow() (store.PollRecord, error)
	Range(from, to time.Time) ([]store.PollRecord, error)
}

// NewApp builds the status server with its error handler and middleware.
func NewApp(logger *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debugw("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
		)
		return err
	})
	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, loc weather.Location, history PollHistory, metrics http.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(metrics))

	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		resp := fiber.Map{"location": loc}

		latest, err := history.Latest()
		switch {
		case err == nil:
			resp["latest"] = latest
		case !errors.Is(err, store.ErrNotFound):
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read poll history")
		}

		if last, err := history.LastSnow(); err == nil {
			resp["last_snow"] = last.CheckedAt
		}
		return c.JSON(resp)
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		polls, err := history.Range(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no polls in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read poll history")
		}

		return c.JSON(fiber.Map{
			"location": loc,
			"from":     req.From,
			"to":       req.To,
			"polls":    polls,
		})
	})
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
