package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/garden-fi/assistant-fulfillment/internal/api/handlers"
	"github.com/garden-fi/assistant-fulfillment/internal/api/middleware"
	"github.com/garden-fi/assistant-fulfillment/internal/api/response"
	"github.com/garden-fi/assistant-fulfillment/internal/api/webhook"
	envconfig "github.com/garden-fi/assistant-fulfillment/internal/common/config"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/enrichment"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
	"github.com/garden-fi/assistant-fulfillment/internal/platform/banno"
	ddbclient "github.com/garden-fi/assistant-fulfillment/internal/platform/dynamodb/client"
	"github.com/garden-fi/assistant-fulfillment/internal/platform/dynamodb/repository"
	"github.com/garden-fi/assistant-fulfillment/internal/platform/secrets"
)

var (
	fulfillment *handlers.FulfillmentHandler
	chain       middleware.APIGatewayHandler
	logger      *slog.Logger
	config      *envconfig.Config
)

func init() {
	// Initialize logger
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var err error
	config, err = envconfig.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load Env config: %v", err)
	}

	if config.ConfigSecretID != "" {
		awscfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		secretsRepo := secrets.NewRepository(secretsmanager.NewFromConfig(awscfg), config.ConfigSecretID)
		overrides, err := secretsRepo.Load(context.Background())
		if err != nil {
			log.Fatalf("Failed to load config secret: %v", err)
		}
		secrets.Apply(config, overrides)
	}

	var cache session.AccountCache
	if config.CacheEnabled() {
		dbClient, err := ddbclient.NewDynamoDBClient(context.Background(), config.AWSRegion)
		if err != nil {
			log.Fatalf("Failed to create DynamoDB client: %v", err)
		}
		cache = repository.NewSessionAccountRepository(dbClient, config.SessionTableName, config.SessionCacheTTL)
	}

	banking := banno.NewClient(config.BankingHostname, logger)
	waiter := enrichment.NewWaiter(config.MaxPollAttempts, logger)
	fulfillment = handlers.NewFulfillmentHandler(config, banking, waiter, cache, logger)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create zap logger: %v", err)
	}

	chain = middleware.NewRecoveryMiddleware().Handle(
		middleware.NewLoggingMiddleware().Handle(
			middleware.NewAuthMiddleware(config, zapLogger).Handle(
				handleWebhook)))
}

func handleWebhook(ctx context.Context, logger *slog.Logger, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod != http.MethodPost {
		return response.NotFound("Endpoint not found"), nil
	}

	var req webhook.Request
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return response.BadRequest("Invalid JSON body"), nil
	}
	if req.Handler.Name == "" {
		return response.BadRequest("Missing handler name"), nil
	}

	logger.Info("fulfillment request",
		"handler", req.Handler.Name,
		"intent", req.Intent.Name,
		"scene", req.Scene.Name,
		"session", req.Session.ID)

	return response.Webhook(fulfillment.Handle(ctx, req)), nil
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return chain(ctx, logger, request)
}

func main() {
	if config.IsLambda() {
		lambda.Start(handler)
		return
	}

	// Local development server; wraps plain HTTP into the gateway shape.
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Info("listening", "addr", addr)
	err := http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			defer r.Body.Close()
			body, _ = io.ReadAll(r.Body)
		}

		headers := make(map[string]string, len(r.Header))
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}

		resp, err := handler(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Headers:    headers,
			Body:       string(body),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for name, value := range resp.Headers {
			w.Header().Set(name, value)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write([]byte(resp.Body))
	}))
	if err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
