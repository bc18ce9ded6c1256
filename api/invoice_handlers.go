package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/billirae/billirae/auth"
	"github.com/billirae/billirae/draft"
	"github.com/billirae/billirae/invoice"
	"github.com/billirae/billirae/model"
)

func (s *Server) handleListInvoices(c *fiber.Ctx) error {
	invoices, err := s.invoices.List(c.Context(), auth.UserID(c), c.Query("status"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(invoices)
}

func (s *Server) handleGetInvoice(c *fiber.Ctx) error {
	inv, err := s.invoices.Get(c.Context(), c.Params("id"), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(inv)
}

func (s *Server) handleCreateInvoice(c *fiber.Ctx) error {
	var inv model.Invoice
	if err := c.BodyParser(&inv); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if len(inv.Items) == 0 {
		return fail(c, fiber.StatusBadRequest, "Eine Rechnung braucht mindestens eine Position.")
	}
	for _, item := range inv.Items {
		if err := s.validate.Struct(item); err != nil {
			return fail(c, fiber.StatusBadRequest, "Ungültige Rechnungsposition.")
		}
	}

	created, err := s.invoices.Create(c.Context(), auth.UserID(c), &inv)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// invoiceUpdateRequest is a partial update: nil fields keep their stored
// values, so an items-only PUT leaves customer and dates untouched.
type invoiceUpdateRequest struct {
	CustomerID  *string             `json:"customer_id"`
	InvoiceDate *string             `json:"invoice_date"`
	DueDate     *string             `json:"due_date"`
	Items       []model.InvoiceItem `json:"items"`
	Notes       *string             `json:"notes"`
	Currency    *string             `json:"currency"`
	Language    *string             `json:"language"`
	Status      *string             `json:"status"`
}

func (s *Server) handleUpdateInvoice(c *fiber.Ctx) error {
	var req invoiceUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}

	inv, err := s.invoices.Get(c.Context(), c.Params("id"), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}

	if req.CustomerID != nil {
		if _, err := s.store.CustomerByID(c.Context(), *req.CustomerID, auth.UserID(c)); err != nil {
			return s.respondError(c, invoice.ErrCustomerNotFound)
		}
		inv.CustomerID = *req.CustomerID
	}
	if req.InvoiceDate != nil {
		inv.InvoiceDate = *req.InvoiceDate
	}
	if req.DueDate != nil {
		inv.DueDate = *req.DueDate
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	if req.Currency != nil {
		inv.Currency = *req.Currency
	}
	if req.Language != nil {
		inv.Language = *req.Language
	}
	if req.Status != nil {
		inv.Status = *req.Status
	}
	if req.Items != nil {
		if len(req.Items) == 0 {
			return fail(c, fiber.StatusBadRequest, "Eine Rechnung braucht mindestens eine Position.")
		}
		for _, item := range req.Items {
			if err := s.validate.Struct(item); err != nil {
				return fail(c, fiber.StatusBadRequest, "Ungültige Rechnungsposition.")
			}
		}
		inv.Items = req.Items
	}

	updated, err := s.invoices.Update(c.Context(), auth.UserID(c), inv)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) handleDeleteInvoice(c *fiber.Ctx) error {
	if err := s.invoices.Delete(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Rechnung gelöscht."})
}

// handleInvoiceEmail mails an already rendered invoice to a recipient of
// the caller's choosing. The recipient is validated before anything else.
func (s *Server) handleInvoiceEmail(c *fiber.Ctx) error {
	var req draft.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bitte geben Sie eine Empfänger-E-Mail-Adresse an.")
	}

	if err := s.invoices.SendEmail(c.Context(), c.Params("id"), auth.UserID(c), req); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Rechnung versendet."})
}

// handleInvoicePDF renders the invoice on demand and serves the file.
func (s *Server) handleInvoicePDF(c *fiber.Ctx) error {
	path, err := s.invoices.GeneratePDF(c.Context(), c.Params("id"), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Download(path)
}

func (s *Server) handleMonthlyIncome(c *fiber.Ctx) error {
	summaries, err := s.invoices.MonthlyIncome(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(summaries)
}

func (s *Server) handleYearlyIncome(c *fiber.Ctx) error {
	summaries, err := s.invoices.YearlyIncome(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(summaries)
}
