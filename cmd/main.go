package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"meeting-summarizer/handler"
	"meeting-summarizer/internal/auth"
	"meeting-summarizer/internal/guard"
	"meeting-summarizer/internal/integrations/mailer"
	"meeting-summarizer/internal/integrations/openai"
	"meeting-summarizer/internal/integrations/paramstore"
	"meeting-summarizer/internal/repository"
	"meeting-summarizer/internal/usecase"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// ---- Configuration (read only here) ----
	summaryTable := mustEnv("SUMMARY_TABLE")
	ownerIndex := envString("OWNER_INDEX", "owner-createdAt-index")
	paramPrefix := mustEnv("PARAM_PREFIX")
	mailFrom := mustEnv("MAIL_FROM")
	llmBaseURL := os.Getenv("LLM_BASE_URL")
	jwtIssuer := os.Getenv("JWT_ISSUER")
	sesConfigSet := os.Getenv("SES_CONFIGURATION_SET")
	maxTranscriptLen := envInt("MAX_TRANSCRIPT_LENGTH", 50000)
	temperature, hasTemperature := envFloat("LLM_TEMPERATURE")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), summaryTable, ownerIndex)
	if err != nil {
		fatal("failed to create summary store", err)
	}
	scope, err := guard.New(store)
	if err != nil {
		fatal("failed to create ownership guard", err)
	}
	openaiOpts := []openai.Option{openai.WithBaseURL(llmBaseURL)}
	if hasTemperature {
		openaiOpts = append(openaiOpts, openai.WithTemperature(temperature))
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix, openaiOpts...)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}
	mailClient, err := mailer.New(awssesv2.NewFromConfig(cfg), mailFrom, mailer.WithConfigurationSet(sesConfigSet))
	if err != nil {
		fatal("failed to create mail client", err)
	}
	verifier, err := auth.NewVerifier(ssmClient, paramPrefix, auth.WithIssuer(jwtIssuer))
	if err != nil {
		fatal("failed to create token verifier", err)
	}

	// ---- Handler ----
	summaryService, err := usecase.NewSummaryService(ssmClient, openaiClient, store, scope, paramPrefix, maxTranscriptLen)
	if err != nil {
		fatal("failed to create summary service", err)
	}
	notifyService, err := usecase.NewNotifyService(mailClient)
	if err != nil {
		fatal("failed to create notify service", err)
	}

	h, err := handler.NewHandler(summaryService, notifyService, verifier)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envFloat reports false when key is unset, so the provider default applies.
func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid float environment variable", "key", key, "value", v)
		return 0, false
	}
	return f, true
}
