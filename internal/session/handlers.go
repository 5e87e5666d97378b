package session

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Session) {
	r.Post("/start", func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		// Body is optional; a bare start opens an unnamed adventure.
		_ = c.BodyParser(&body)
		adv, err := svc.StartNew(c.Context(), body.Name)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(adv)
	})

	r.Get("/current", func(c *fiber.Ctx) error {
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "no current adventure")
		}
		return c.JSON(svc.Current())
	})

	r.Put("/name", func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "no current adventure")
		}
		if err := svc.Rename(c.Context(), body.Name); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(svc.Current())
	})

	r.Post("/save", func(c *fiber.Ctx) error {
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "no current adventure")
		}
		if err := svc.SaveCurrent(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(svc.Current())
	})

	r.Post("/waypoints", func(c *fiber.Ctx) error {
		var body struct {
			Lat      float64 `json:"lat"`
			Lng      float64 `json:"lng"`
			Note     *string `json:"note"`
			MediaURI *string `json:"media_uri"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "no current adventure")
		}
		wp, err := svc.AddWaypoint(c.Context(), body.Lat, body.Lng, body.Note, body.MediaURI)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(wp)
	})

	r.Post("/restore", func(c *fiber.Ctx) error {
		if err := svc.Restore(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "nothing to restore")
		}
		return c.JSON(svc.Current())
	})

	r.Post("/select/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure id")
		}
		adv, ok, err := svc.store.AdventureByID(c.Context(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "adventure not found")
		}
		if err := svc.SetCurrent(c.Context(), adv); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(svc.Current())
	})

	r.Get("/summary", func(c *fiber.Ctx) error {
		if !svc.HasCurrent() {
			return fiber.NewError(fiber.StatusNotFound, "no current adventure")
		}
		return c.JSON(svc.Summary())
	})

	r.Post("/clear", func(c *fiber.Ctx) error {
		if err := svc.Clear(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
