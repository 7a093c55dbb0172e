package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string

	ProviderAPIURL string
	ProviderAPIKey string

	PaymentAPIURL      string
	PaymentAPIKey      string
	PaymentCallbackURL string
	PaymentBuyerEmail  string

	ChatGatewayURL   string
	ChatGatewayToken string

	AdminLogin    string
	AdminPassword string
	TokenSecret   string

	PollInterval    time.Duration
	PollBatchSize   int
	WorkerPoolSize  int
	ShutdownTimeout time.Duration
}

const (
	defaultRunAddress      = ":8080"
	defaultProviderAPIURL  = "https://smmguo.com/api/v2"
	defaultPaymentAPIURL   = "https://zenoapi.com/api/payments/mobile_money_tanzania"
	defaultBuyerEmail      = "admin@codeskytz.site"
	defaultTokenSecret     = "change-me-in-production"
	defaultPollInterval    = 30 * time.Second
	defaultPollBatchSize   = 20
	defaultWorkerPoolSize  = 4
	defaultShutdownTimeout = 10 * time.Second
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:         getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:        getString(lookup, "DATABASE_URI", ""),
		ProviderAPIURL:     getString(lookup, "SMM_API_URL", defaultProviderAPIURL),
		ProviderAPIKey:     getString(lookup, "SMM_API_KEY", ""),
		PaymentAPIURL:      getString(lookup, "PAYMENT_API_URL", defaultPaymentAPIURL),
		PaymentAPIKey:      getString(lookup, "PAYMENT_API_KEY", ""),
		PaymentCallbackURL: getString(lookup, "PAYMENT_CALLBACK_URL", ""),
		PaymentBuyerEmail:  getString(lookup, "PAYMENT_BUYER_EMAIL", defaultBuyerEmail),
		ChatGatewayURL:     getString(lookup, "CHAT_GATEWAY_URL", ""),
		ChatGatewayToken:   getString(lookup, "CHAT_GATEWAY_TOKEN", ""),
		AdminLogin:         getString(lookup, "ADMIN_LOGIN", "admin"),
		AdminPassword:      getString(lookup, "ADMIN_PASSWORD", ""),
		TokenSecret:        getString(lookup, "TOKEN_SECRET", defaultTokenSecret),
		PollInterval:       getDuration(lookup, "ORDER_POLL_INTERVAL", defaultPollInterval),
		PollBatchSize:      getInt(lookup, "POLL_BATCH_SIZE", defaultPollBatchSize),
		WorkerPoolSize:     getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:    getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("smmbot", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		pollIntervalStr    = cfg.PollInterval.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.ProviderAPIURL, "smm-url", cfg.ProviderAPIURL, "SMM provider API base URL")
	fs.StringVar(&cfg.PaymentAPIURL, "payment-url", cfg.PaymentAPIURL, "Mobile money gateway URL")
	fs.StringVar(&cfg.PaymentCallbackURL, "callback-url", cfg.PaymentCallbackURL, "Public URL for payment webhooks")
	fs.StringVar(&cfg.ChatGatewayURL, "chat-url", cfg.ChatGatewayURL, "Outbound chat gateway URL")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent poller workers")
	fs.StringVar(&pollIntervalStr, "poll-interval", pollIntervalStr, "Interval between provider status polls")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.IntVar(&cfg.PollBatchSize, "poll-batch", cfg.PollBatchSize, "Maximum orders per polling batch")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PollInterval, err = time.ParseDuration(pollIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if secretFile, ok := lookup("TOKEN_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read token secret file: %w", err)
		}
		cfg.TokenSecret = string(content)
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.PollBatchSize <= 0 {
		cfg.PollBatchSize = defaultPollBatchSize
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
