package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/billirae/billirae/auth"
	"github.com/billirae/billirae/model"
)

func (s *Server) handleListCustomers(c *fiber.Ctx) error {
	customers, err := s.store.CustomersByUser(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(customers)
}

func (s *Server) handleCreateCustomer(c *fiber.Ctx) error {
	var customer model.Customer
	if err := c.BodyParser(&customer); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	customer.ID = ""
	customer.UserID = auth.UserID(c)
	if err := s.validate.Struct(customer); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bitte geben Sie mindestens einen Kundennamen an.")
	}

	if err := s.store.CreateCustomer(c.Context(), &customer); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(customer)
}
