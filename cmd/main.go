package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/sidecar/internal/config"
	"github.com/davidbz/sidecar/internal/credstore"
	"github.com/davidbz/sidecar/internal/domain"
	"github.com/davidbz/sidecar/internal/fim"
	"github.com/davidbz/sidecar/internal/http"
	"github.com/davidbz/sidecar/internal/http/middleware"
	"github.com/davidbz/sidecar/internal/observability"
	"github.com/davidbz/sidecar/internal/prompt"
	"github.com/davidbz/sidecar/internal/provider/anthropic"
	"github.com/davidbz/sidecar/internal/provider/gemini"
	"github.com/davidbz/sidecar/internal/provider/ollama"
	"github.com/davidbz/sidecar/internal/provider/openai"
	"github.com/davidbz/sidecar/internal/provider/registry"
	"github.com/davidbz/sidecar/internal/provider/together"
	"github.com/davidbz/sidecar/internal/provider/transport"
	"github.com/davidbz/sidecar/internal/routing"
	"github.com/davidbz/sidecar/internal/tokenizer"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	envFiles    []string
	credentials string
	port        int
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Invalid arguments: %v", err)
	}

	container := buildContainer(opts)

	err = container.Invoke(func(server *http.Server, bus *observability.EventBus) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			bus.Close()
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		bus.Close()
		return err
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options

	flagSet := pflag.NewFlagSet("sidecar", pflag.ContinueOnError)
	flagSet.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	flagSet.StringVar(&opts.credentials, "credentials", "", "credential profiles file (overrides SIDECAR_CREDENTIALS_FILE)")
	flagSet.IntVarP(&opts.port, "port", "p", 0, "listen port (overrides SERVER_PORT)")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return opts, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return opts, nil
}

func buildContainer(opts options) *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(func() *config.Config {
		cfg := config.Load(opts.envFiles...)
		if opts.credentials != "" {
			cfg.Credentials.File = opts.credentials
		}
		if opts.port != 0 {
			cfg.Server.Port = opts.port
		}
		return cfg
	}); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Invoke(func(*zap.Logger) {}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	if err := container.Provide(func(logger *zap.Logger, cfg *config.EventsConfig) *observability.EventBus {
		return observability.NewEventBus(logger, cfg.Buffer)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}
	if err := container.Provide(func(bus *observability.EventBus) domain.EventPublisher {
		return bus
	}); err != nil {
		log.Fatalf("Failed to provide event publisher: %v", err)
	}

	// Shared building blocks
	for name, constructor := range map[string]any{
		"provider HTTP client": transport.NewHTTPClient,
		"prompt formatters":    prompt.NewRegistry,
		"answer models":        domain.DefaultAnswerModels,
		"client registry":      registry.NewRegistry,
	} {
		if err := container.Provide(constructor); err != nil {
			log.Fatalf("Failed to provide %s: %v", name, err)
		}
	}
	if err := container.Provide(func(reg *registry.Registry) domain.ClientRegistry {
		return reg
	}); err != nil {
		log.Fatalf("Failed to provide client registry interface: %v", err)
	}

	// Credentials
	if err := container.Provide(func(cfg *config.CredentialsConfig) (*credstore.Store, error) {
		store, err := credstore.Load(cfg.File)
		if err != nil {
			return nil, err
		}
		observability.FromContext(context.Background()).Info("credential profiles loaded",
			observability.String("file", cfg.File),
			observability.Strings("profiles", store.Names()))
		return store, nil
	}); err != nil {
		log.Fatalf("Failed to provide credential store: %v", err)
	}
	if err := container.Provide(func(store *credstore.Store, reg domain.ClientRegistry) *routing.Router {
		return routing.NewRouter(reg, store)
	}); err != nil {
		log.Fatalf("Failed to provide router: %v", err)
	}

	// Provider clients (invoked for side effects)
	if err := container.Invoke(registerClients); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewBroker); err != nil {
		log.Fatalf("Failed to provide broker: %v", err)
	}
	if err := container.Provide(func(answerModels *domain.AnswerModels, broker *domain.Broker) *fim.Broker {
		return fim.NewBroker(answerModels, broker)
	}); err != nil {
		log.Fatalf("Failed to provide FIM broker: %v", err)
	}
	if err := container.Provide(func(formatters *prompt.Registry, answerModels *domain.AnswerModels) *tokenizer.Service {
		return tokenizer.NewService(context.Background(), tokenizer.DefaultFamilies(), formatters, answerModels)
	}); err != nil {
		log.Fatalf("Failed to provide tokenizer: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(func(
		broker *domain.Broker,
		fimBroker *fim.Broker,
		tokens *tokenizer.Service,
		reg *registry.Registry,
		answerModels *domain.AnswerModels,
		router *routing.Router,
	) *http.Handler {
		return http.NewHandler(broker, fimBroker, tokens, reg, answerModels, router)
	}); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

func registerClients(
	reg domain.ClientRegistry,
	httpClient *stdhttp.Client,
	cfg *config.ProvidersConfig,
	formatters *prompt.Registry,
) error {
	ctx := context.Background()

	clients := []domain.Client{
		openai.NewOpenAI(httpClient, cfg),
		openai.NewAzure(httpClient, cfg),
		openai.NewFireworks(httpClient, cfg),
		openai.NewGroq(httpClient, cfg),
		openai.NewOpenRouter(httpClient, cfg),
		openai.NewCompatible(httpClient),
		openai.NewCodeStory(httpClient, cfg),
		anthropic.NewClient(httpClient, cfg),
		gemini.NewStudio(httpClient, cfg),
		gemini.NewVertex(httpClient, cfg),
		together.NewClient(httpClient, cfg, formatters),
		ollama.NewClient(httpClient, cfg),
	}

	for _, client := range clients {
		if err := reg.Register(ctx, client); err != nil {
			return fmt.Errorf("failed to register %s client: %w", client.Identity(), err)
		}
	}

	identities, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}
	observability.FromContext(ctx).Info("provider clients registered", observability.Int("count", len(identities)))

	return nil
}
