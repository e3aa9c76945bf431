package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kandalvillage/posflow/internal/awsx"
	"github.com/kandalvillage/posflow/internal/catalog"
	"github.com/kandalvillage/posflow/internal/checkout"
	"github.com/kandalvillage/posflow/internal/handlers"
	"github.com/kandalvillage/posflow/internal/idempotency"
	"github.com/kandalvillage/posflow/internal/merge"
	"github.com/kandalvillage/posflow/internal/metrics"
	"github.com/kandalvillage/posflow/internal/notify"
	"github.com/kandalvillage/posflow/internal/poll"
	"github.com/kandalvillage/posflow/internal/pricing"
	"github.com/kandalvillage/posflow/internal/store"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	ctx := context.Background()

	clients, err := awsx.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	strapiURL := os.Getenv("STRAPI_URL")
	if strapiURL == "" {
		log.Fatal("STRAPI_URL is required")
	}
	client := store.NewClient(strapiURL, os.Getenv("STRAPI_TOKEN"))

	rielRate := pricing.DefaultRielRate
	if raw := os.Getenv("RIEL_EXCHANGE_RATE"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			log.Fatalf("invalid RIEL_EXCHANGE_RATE %q: %v", raw, err)
		}
		rielRate = rate
	}

	resolver := catalog.NewResolver(client, catalog.NewNameCache())
	calc := pricing.NewCalculator(resolver, rielRate)

	var idemp checkout.IdempotencyStore
	if table := os.Getenv("IDEMPOTENCY_TABLE"); table != "" {
		idemp = idempotency.NewStore(clients.DynamoDB, table, 48*time.Hour)
	}

	var kitchen *notify.KitchenPublisher
	if queueURL := os.Getenv("KITCHEN_QUEUE_URL"); queueURL != "" {
		kitchen = notify.NewKitchenPublisher(clients.SQS, queueURL)
	}

	orch := checkout.NewOrchestrator(client, calc, idemp, metrics.NewPublisher(clients.CloudWatch))

	interval := poll.DefaultInterval
	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			log.Fatalf("invalid POLL_INTERVAL %q", raw)
		}
		interval = time.Duration(secs) * time.Second
	}
	poller := poll.New(client, interval)
	poller.OnUnauthorized(func() {
		log.Printf("remote store rejected the token; order snapshot frozen until restart")
	})

	pollCtx, stopPolling := context.WithCancel(ctx)
	defer stopPolling()
	go poller.Run(pollCtx)

	cfg := handlers.HandlerConfig{
		Store:    client,
		Poller:   poller,
		Checkout: orch,
		Merger:   merge.NewMerger(client),
		Kitchen:  kitchen,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
