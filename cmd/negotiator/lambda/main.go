package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"procureagent"
	"procureagent/capability/bedrock"
	"procureagent/negotiation"
	"procureagent/notify"
	"procureagent/procurement"
	"procureagent/storage"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
)

type Params struct {
	Order procureagent.OrderRequirement `json:"order"`
}

type Results struct {
	RunID  string                             `json:"run_id"`
	Report procureagent.FinalComparisonReport `json:"report"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig procureagent.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var agentConfig procureagent.AgentConfig
		if err := envdecode.Decode(&agentConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		var notifyConfig procureagent.NotifyConfig
		if err := envdecode.Decode(&notifyConfig); err != nil {
			log.Fatalf("Failed to decode: %s", err)
		}

		if agentConfig.DocumentsS3Bucket == "" {
			return Results{}, fmt.Errorf("missing S3 config: DOCUMENTS_S3_BUCKET must be set")
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)

		documents := storage.NewS3DocumentStore(s3Client, agentConfig.DocumentsS3Bucket, agentConfig.DocumentsS3Prefix)
		slog.Info("SETUP: S3 document store initialized", "bucket", agentConfig.DocumentsS3Bucket, "prefix", agentConfig.DocumentsS3Prefix)

		opts := []negotiation.Option{negotiation.WithTeamID(agentConfig.TeamID)}
		if agentConfig.ReportsS3Bucket != "" {
			opts = append(opts, negotiation.WithReportArchive(storage.NewS3ReportStore(s3Client, agentConfig.ReportsS3Bucket)))
		}

		sink, closeSink := notify.New(notifyConfig, http.DefaultClient)
		defer closeSink()
		opts = append(opts, negotiation.WithProgressSink(sink))

		llm := bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		})
		capability := bedrock.NewCapability(llm)

		api := procurement.NewRetrying(
			procurement.NewClient(agentConfig.APIBase, agentConfig.TeamID, http.DefaultClient),
			procurement.WithMaxAttempts(agentConfig.TransportMaxAttempts),
			procurement.WithAttemptTimeout(agentConfig.TransportTimeout),
		)

		_, _, otelShutdown, err := procureagent.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		state, err := negotiation.NewOrchestrator(
			api,
			negotiation.NewScreener(capability, documents),
			negotiation.NewPlanner(capability, api),
			negotiation.NewSessionRunner(api, capability, procureagent.NewStdoutTranscriptLogger(), agentConfig.SessionTurns()),
			opts...,
		).Run(ctx, params.Order)
		if err != nil {
			slog.Error("RESULT: Procurement run failed", "error", err)
			return Results{}, err
		}

		return Results{RunID: state.RunID, Report: state.Report}, nil
	}

	lambda.Start(fn)
}
