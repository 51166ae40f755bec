package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/ports"
)

type ContainerHandler struct {
	engine ports.ContainerEngine
}

func NewContainerHandler(engine ports.ContainerEngine) *ContainerHandler {
	return &ContainerHandler{engine: engine}
}

func (h *ContainerHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.engine.ListContainers(c.UserContext(), domain.ContainerFilter{All: c.QueryBool("all")})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}

func (h *ContainerHandler) StopContainer(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	if err := h.engine.StopContainer(c.UserContext(), id); err != nil {
		return c.Status(engineStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *ContainerHandler) GetContainerLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	logs, err := h.engine.ContainerLogs(c.UserContext(), id)
	if err != nil {
		return c.Status(engineStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(logs)
}

func engineStatus(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}
