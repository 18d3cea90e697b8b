package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/AdakHaddad/capdash/internal/service"
)

func Register(app *fiber.App, svcs *service.Services) {
	g := app.Group("/")
	g.Get("devices", func(c *fiber.Ctx) error {
		items, err := svcs.Repos.ListDevices()
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})
	g.Get("readings/latest", func(c *fiber.Ctx) error {
		deviceID := int64(c.QueryInt("device_id", 1))
		item, err := svcs.Repos.LatestReading(deviceID)
		if err != nil {
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(item)
	})
	g.Get("readings/recent", func(c *fiber.Ctx) error {
		deviceID := int64(c.QueryInt("device_id", 1))
		hours := c.QueryInt("hours", 24)
		items, err := svcs.Repos.RecentReadings(deviceID, hours)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(items)
	})
}
