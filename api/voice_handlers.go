package api

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/billirae/billirae/auth"
	"github.com/billirae/billirae/draft"
	"github.com/billirae/billirae/model"
)

type parseRequest struct {
	Transcript string `json:"transcript"`
}

// handleParse maps a transcript to an invoice draft. An empty transcript is
// a no-op that never reaches the language model.
func (s *Server) handleParse(c *fiber.Ctx) error {
	var req parseRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return c.JSON(fiber.Map{"draft": nil})
	}

	d, err := s.parser.Parse(c.Context(), req.Transcript)
	if err != nil {
		return s.respondError(c, err)
	}
	if d != nil {
		s.controllerFor(auth.UserID(c)).SetDraft(*d)
	}
	return c.JSON(fiber.Map{"draft": d})
}

// handleTranscribe takes an uploaded recording, transcribes it and maps the
// transcript to a draft in one request.
func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Bitte laden Sie eine Audiodatei hoch.")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return s.respondError(c, err)
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return s.respondError(c, err)
	}

	transcript, err := s.transcriber.Transcribe(c.Context(), audio, fileHeader.Filename)
	if err != nil {
		return s.respondError(c, err)
	}

	d, err := s.parser.Parse(c.Context(), transcript)
	if err != nil {
		return s.respondError(c, err)
	}
	if d != nil {
		s.controllerFor(auth.UserID(c)).SetDraft(*d)
	}
	return c.JSON(fiber.Map{"transcript": transcript, "draft": d})
}

// draftView is the JSON shape of a draft controller snapshot.
func draftView(ctrl *draft.Controller) fiber.Map {
	return fiber.Map{
		"state":      ctrl.State().String(),
		"draft":      ctrl.Draft(),
		"invoice_id": ctrl.InvoiceID(),
		"pdf_ref":    ctrl.PDFRef(),
	}
}

func (s *Server) handleGetDraft(c *fiber.Ctx) error {
	return c.JSON(draftView(s.controllerFor(auth.UserID(c))))
}

func (s *Server) handleEditDraft(c *fiber.Ctx) error {
	var d model.InvoiceDraft
	if err := c.BodyParser(&d); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if err := s.validate.Struct(d); err != nil {
		return fail(c, fiber.StatusBadRequest, "Der Rechnungsentwurf ist unvollständig oder ungültig.")
	}

	ctrl := s.controllerFor(auth.UserID(c))
	if err := ctrl.Edit(d); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(draftView(ctrl))
}

func (s *Server) handleClearDraft(c *fiber.Ctx) error {
	ctrl := s.controllerFor(auth.UserID(c))
	ctrl.Clear()
	return c.JSON(draftView(ctrl))
}

func (s *Server) handleCommitDraft(c *fiber.Ctx) error {
	ctrl := s.controllerFor(auth.UserID(c))
	if err := ctrl.Commit(c.Context()); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(draftView(ctrl))
}

func (s *Server) handleDraftPDF(c *fiber.Ctx) error {
	ctrl := s.controllerFor(auth.UserID(c))
	if err := ctrl.GeneratePDF(c.Context()); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(draftView(ctrl))
}

func (s *Server) handleDraftEmail(c *fiber.Ctx) error {
	var req draft.EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}

	ctrl := s.controllerFor(auth.UserID(c))
	if err := ctrl.SendEmail(c.Context(), req); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(draftView(ctrl))
}
