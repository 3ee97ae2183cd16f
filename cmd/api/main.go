package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adreel/internal/http/handlers"
	httpapi "adreel/internal/http/httpapi"
	"adreel/internal/infra"
	"adreel/internal/infra/credentials"
	"adreel/internal/infra/geoip"
	"adreel/internal/middleware"
	"adreel/internal/providers/genai"
	"adreel/internal/providers/prompt"
	"adreel/internal/providers/videogen"
	"adreel/internal/supervisor"
	"adreel/internal/usage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sqlRunner := infra.NewSQLRunner(dbpool, logger)
	creds := credentials.NewStore(sqlRunner)

	// Provider keys: env first, database-stored token as fallback.
	geminiKey := creds.Resolve(ctx, credentials.ProviderGemini, cfg.GeminiAPIKey)
	openAIKey := creds.Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	runwayKey := creds.Resolve(ctx, credentials.ProviderRunway, cfg.RunwayAPIKey)
	minimaxKey := creds.Resolve(ctx, credentials.ProviderMiniMax, cfg.MiniMaxAPIKey)

	var genaiClient *genai.Client
	if geminiKey != "" {
		genaiClient = genai.NewClient(genai.Options{
			APIKey:  geminiKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Logger:  &logger,
		})
	} else {
		logger.Warn().Msg("gemini key missing, prompt composition will use local fusion")
	}

	composer := prompt.NewComposer(prompt.ComposerOptions{
		Client:         genaiClient,
		SplitThreshold: cfg.SplitThreshold,
		MaxChars:       cfg.ComposeMaxLen,
		Logger:         logger,
	})

	var chain prompt.ChainSummarizer
	if genaiClient != nil {
		chain = append(chain, prompt.NewGeminiSummarizer(genaiClient))
	}
	if openAIKey != "" {
		openAISummarizer, err := prompt.NewOpenAISummarizer(prompt.OpenAISummarizerOptions{
			APIKey:  openAIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
		if err == nil {
			chain = append(chain, openAISummarizer)
		}
	}
	fitter := prompt.NewFitter(chain, logger)

	registry := videogen.NewRegistry()
	if runwayKey != "" {
		runway, err := videogen.NewRunwayAdapter(videogen.RunwayOptions{
			APIKey:  runwayKey,
			BaseURL: cfg.RunwayBaseURL,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure runway adapter")
		}
		registry.Register(runway)
	}
	if minimaxKey != "" {
		minimax, err := videogen.NewMiniMaxAdapter(videogen.MiniMaxOptions{
			APIKey:  minimaxKey,
			BaseURL: cfg.MiniMaxBaseURL,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure minimax adapter")
		}
		registry.Register(minimax)
	}
	if len(registry.Names()) == 0 {
		logger.Fatal().Msg("no video provider configured, set RUNWAY_API_KEY or MINIMAX_API_KEY")
	}

	jobs := supervisor.New(registry, supervisor.Config{
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		MaxAttempts:  cfg.PollMaxAttempts,
	}, logger)

	app := &handlers.App{
		Config:      cfg,
		Logger:      logger,
		SQL:         sqlRunner,
		Providers:   registry,
		Composer:    composer,
		Fitter:      fitter,
		Guard:       usage.NewPGGuard(sqlRunner),
		Usage:       usage.NewRecorder(sqlRunner, logger),
		Jobs:        jobs,
		Credentials: creds,
	}

	var country middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, country tagging disabled")
	} else if resolver != nil {
		country = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, country)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s (providers: %v)", cfg.Port, registry.Names())
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	jobs.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
