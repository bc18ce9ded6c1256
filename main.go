package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/billirae/billirae/api"
	"github.com/billirae/billirae/auth"
	"github.com/billirae/billirae/config"
	"github.com/billirae/billirae/email"
	"github.com/billirae/billirae/invoice"
	"github.com/billirae/billirae/llm"
	"github.com/billirae/billirae/logger"
	"github.com/billirae/billirae/pdf"
	"github.com/billirae/billirae/store"
	"github.com/billirae/billirae/stt"
	"github.com/billirae/billirae/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal().Err(err).Msg("loading configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer st.Close()

	authSvc, err := auth.NewService(st, cfg.JWTSecret, cfg.JWTTTL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating auth service")
	}

	renderer := pdf.NewRenderer(log)
	mail := email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailSender, log)
	if !mail.Available() {
		log.Warn().Msg("SMTP not configured, invoice dispatch disabled")
	}

	invoices, err := invoice.NewService(st, renderer, mail, cfg.PDFDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating invoice service")
	}

	parser, err := llm.NewInvoiceParser(cfg.OpenAIKey, cfg.GPTModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating invoice parser")
	}
	transcriber := stt.NewWhisperTranscriber(cfg.OpenAIKey, "de", log)

	dialer := stt.NewDeepgramDialer(cfg.DeepgramKey, log)
	if !dialer.Available() {
		log.Warn().Msg("Deepgram not configured, live transcription disabled")
	}

	worker, err := workers.NewTranscriptionWorker(transcriber, parser, log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating transcription worker")
	}
	worker.Start()
	defer worker.Stop()

	server, err := api.NewServer(cfg, st, authSvc, invoices, mail, parser, transcriber, worker, dialer, log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating api server")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // uploaded recordings
	})
	server.Register(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("shutting down")
		_ = app.Shutdown()
	}()

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
