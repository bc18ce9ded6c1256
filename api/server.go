// Package api exposes the HTTP and websocket surface of the application.
package api

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/auth"
	"github.com/billirae/billirae/config"
	"github.com/billirae/billirae/draft"
	"github.com/billirae/billirae/email"
	"github.com/billirae/billirae/invoice"
	"github.com/billirae/billirae/llm"
	"github.com/billirae/billirae/store"
	"github.com/billirae/billirae/stt"
	"github.com/billirae/billirae/voice"
	"github.com/billirae/billirae/workers"
)

// Server wires every service into Fiber routes. Draft controllers are
// per-user and live for the lifetime of the process.
type Server struct {
	cfg         *config.Config
	store       *store.Store
	auth        *auth.Service
	invoices    *invoice.Service
	mail        *email.Sender
	parser      *llm.InvoiceParser
	transcriber *stt.WhisperTranscriber
	worker      *workers.TranscriptionWorker
	dialer      stt.StreamDialer
	validate    *validator.Validate
	log         zerolog.Logger

	mu      sync.Mutex
	drafts  map[string]*draft.Controller
	streams map[string]chan workers.Result
}

// NewServer creates the API server.
func NewServer(
	cfg *config.Config,
	st *store.Store,
	authSvc *auth.Service,
	invoices *invoice.Service,
	mail *email.Sender,
	parser *llm.InvoiceParser,
	transcriber *stt.WhisperTranscriber,
	worker *workers.TranscriptionWorker,
	dialer stt.StreamDialer,
	log zerolog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: config is required")
	}
	if st == nil {
		return nil, errors.New("api: store is required")
	}
	if authSvc == nil {
		return nil, errors.New("api: auth service is required")
	}
	if invoices == nil {
		return nil, errors.New("api: invoice service is required")
	}
	if mail == nil {
		return nil, errors.New("api: mail sender is required")
	}
	if parser == nil {
		return nil, errors.New("api: parser is required")
	}
	if transcriber == nil {
		return nil, errors.New("api: transcriber is required")
	}
	if worker == nil {
		return nil, errors.New("api: transcription worker is required")
	}
	if dialer == nil {
		return nil, errors.New("api: stream dialer is required")
	}
	return &Server{
		cfg:         cfg,
		store:       st,
		auth:        authSvc,
		invoices:    invoices,
		mail:        mail,
		parser:      parser,
		transcriber: transcriber,
		worker:      worker,
		dialer:      dialer,
		validate:    validator.New(),
		log:         log,
		drafts:      map[string]*draft.Controller{},
		streams:     map[string]chan workers.Result{},
	}, nil
}

// Register mounts all routes on the app and starts the background result
// dispatcher.
func (s *Server) Register(app *fiber.App) {
	go s.dispatchResults()

	api := app.Group("/api")

	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)

	authed := api.Group("", s.auth.Middleware())

	authed.Get("/users/profile", s.handleProfile)
	authed.Put("/users/profile", s.handleUpdateProfile)
	authed.Get("/users/export", s.handleExport)
	authed.Delete("/users/account", s.handleDeleteAccount)

	authed.Get("/customers", s.handleListCustomers)
	authed.Post("/customers", s.handleCreateCustomer)

	authed.Get("/income/monthly", s.handleMonthlyIncome)
	authed.Get("/income/yearly", s.handleYearlyIncome)

	authed.Get("/invoices", s.handleListInvoices)
	authed.Post("/invoices", s.handleCreateInvoice)
	authed.Get("/invoices/:id", s.handleGetInvoice)
	authed.Put("/invoices/:id", s.handleUpdateInvoice)
	authed.Delete("/invoices/:id", s.handleDeleteInvoice)
	authed.Get("/invoices/:id/pdf", s.handleInvoicePDF)
	authed.Post("/invoices/:id/email", s.handleInvoiceEmail)

	authed.Post("/voice/parse", s.handleParse)
	authed.Post("/voice/transcribe", s.handleTranscribe)

	authed.Get("/draft", s.handleGetDraft)
	authed.Put("/draft", s.handleEditDraft)
	authed.Delete("/draft", s.handleClearDraft)
	authed.Post("/draft/commit", s.handleCommitDraft)
	authed.Post("/draft/pdf", s.handleDraftPDF)
	authed.Post("/draft/email", s.handleDraftEmail)

	app.Use("/api/voice/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/api/voice/stream", s.handleStream())
}

// controllerFor returns the user's draft controller, creating it on first
// use.
func (s *Server) controllerFor(userID string) *draft.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.drafts[userID]; ok {
		return c
	}
	c, err := draft.NewController(s.invoices.ForUser(userID), s.log)
	if err != nil {
		// Unreachable: the services adapter is never nil.
		panic(err)
	}
	s.drafts[userID] = c
	return c
}

// subscribe registers a stream for a user's transcription results. The
// previous subscription of the same user, if any, is dropped.
func (s *Server) subscribe(userID string) chan workers.Result {
	ch := make(chan workers.Result, 4)
	s.mu.Lock()
	s.streams[userID] = ch
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(userID string, ch chan workers.Result) {
	s.mu.Lock()
	if s.streams[userID] == ch {
		delete(s.streams, userID)
	}
	s.mu.Unlock()
}

// dispatchResults routes worker results to the subscribed stream of the
// owning user. Results for users without an open stream still reach the
// draft controller.
func (s *Server) dispatchResults() {
	for res := range s.worker.Results() {
		if res.Err == nil && res.Draft != nil {
			s.controllerFor(res.UserID).SetDraft(*res.Draft)
		}

		s.mu.Lock()
		ch, ok := s.streams[res.UserID]
		s.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- res:
		default:
			s.log.Warn().Str("user_id", res.UserID).Msg("dropping result, stream backlog full")
		}
	}
}

// errMessage is the generic German fallback for unclassified failures.
const errMessage = "Fehler bei der Verarbeitung der Sprachaufnahme. Bitte versuchen Sie es erneut."

// respondError maps service errors to HTTP status codes and user-facing
// German messages.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, draft.ErrMissingRecipient):
		return fail(c, fiber.StatusBadRequest, "Bitte geben Sie eine Empfänger-E-Mail-Adresse an.")
	case errors.Is(err, draft.ErrNoDraft):
		return fail(c, fiber.StatusNotFound, "Es liegt kein Rechnungsentwurf vor.")
	case errors.Is(err, draft.ErrInvalidState):
		return fail(c, fiber.StatusConflict, "Diese Aktion ist im aktuellen Zustand nicht möglich.")
	case errors.Is(err, draft.ErrBusy):
		return fail(c, fiber.StatusConflict, "Eine andere Aktion läuft noch. Bitte warten Sie einen Moment.")
	case errors.Is(err, invoice.ErrCustomerNotFound):
		return fail(c, fiber.StatusNotFound, "Kunde nicht gefunden.")
	case errors.Is(err, invoice.ErrNoPDF):
		return fail(c, fiber.StatusConflict, "Für diese Rechnung wurde noch kein PDF erstellt.")
	case errors.Is(err, store.ErrNotFound):
		return fail(c, fiber.StatusNotFound, "Nicht gefunden.")
	case errors.Is(err, store.ErrEmailExists):
		return fail(c, fiber.StatusConflict, "Diese E-Mail-Adresse ist bereits registriert.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fail(c, fiber.StatusUnauthorized, "E-Mail-Adresse oder Passwort ist falsch.")
	}

	var ve *voice.Error
	if errors.As(err, &ve) {
		return fail(c, fiber.StatusUnprocessableEntity, voice.MessageFor(ve.Code))
	}

	s.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return fail(c, fiber.StatusInternalServerError, errMessage)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
