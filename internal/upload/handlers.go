package upload

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, q *Queue) {
	r.Post("/adventures/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure id")
		}
		var body struct {
			OffloadAfter bool `json:"offload_after"`
		}
		// Body is optional for a whole-adventure upload.
		_ = c.BodyParser(&body)
		job, err := q.EnqueueJob(Job{
			AdventureID:  id,
			Selection:    AllSelected(),
			OffloadAfter: body.OffloadAfter,
		})
		if err != nil {
			if errors.Is(err, ErrQueueFull) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(job)
	})

	r.Post("/adventures/:id/selection", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure id")
		}
		var body struct {
			Selection    Selection `json:"selection"`
			OffloadAfter bool      `json:"offload_after"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		job, err := q.EnqueueJob(Job{
			AdventureID:  id,
			Selection:    body.Selection,
			OffloadAfter: body.OffloadAfter,
		})
		if err != nil {
			if errors.Is(err, ErrQueueFull) {
				return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusAccepted).JSON(job)
	})
}
