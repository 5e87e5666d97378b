package tracking

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Sampler, feed *FeedSource) {
	r.Post("/grant", func(c *fiber.Ctx) error {
		var body struct {
			Granted bool `json:"granted"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		feed.SetAuthorized(body.Granted)
		return c.JSON(fiber.Map{"granted": body.Granted})
	})

	r.Post("/positions", func(c *fiber.Ctx) error {
		var body struct {
			Lat       float64   `json:"lat"`
			Lng       float64   `json:"lng"`
			Timestamp time.Time `json:"timestamp"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if body.Timestamp.IsZero() {
			body.Timestamp = time.Now().UTC()
		}
		feed.Push(Position{Lat: body.Lat, Lng: body.Lng, Timestamp: body.Timestamp})
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/start", func(c *fiber.Ctx) error {
		started := svc.Start()
		return c.JSON(fiber.Map{"started": started, "state": svc.State().String()})
	})

	r.Post("/pause", func(c *fiber.Ctx) error {
		svc.Pause()
		return c.JSON(fiber.Map{"state": svc.State().String()})
	})

	r.Post("/resume", func(c *fiber.Ctx) error {
		svc.Resume()
		return c.JSON(fiber.Map{"state": svc.State().String()})
	})

	r.Post("/stop", func(c *fiber.Ctx) error {
		svc.Stop()
		return c.JSON(fiber.Map{"state": svc.State().String()})
	})

	r.Get("/state", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"state": svc.State().String()})
	})
}
