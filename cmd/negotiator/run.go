package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"procureagent"
	"procureagent/capability/bedrock"
	"procureagent/capability/mock"
	"procureagent/capability/ollama"
	"procureagent/negotiation"
	"procureagent/notify"
	"procureagent/procurement"
	"procureagent/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"
)

type runOptions struct {
	orderPath      string
	vendorsPath    string
	backend        string
	transcriptPath string
	concurrency    int
	dump           bool
	otel           bool
}

type configs struct {
	model  procureagent.ModelConfig
	agent  procureagent.AgentConfig
	notify procureagent.NotifyConfig
}

func runCMD() *cobra.Command {
	var opts runOptions
	var run = &cobra.Command{
		Use:   "run",
		Short: "Run a full procurement for an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigs()
			if err != nil {
				return err
			}
			return runProcurement(cmd.Context(), opts, cfg, cmd.OutOrStdout())
		},
	}
	run.Flags().StringVarP(&opts.orderPath, "order", "o", "data/order.json", "order requirement (JSON)")
	run.Flags().StringVar(&opts.vendorsPath, "vendors", "", "vendor fixture (YAML); replaces the remote procurement API")
	run.Flags().StringVar(&opts.backend, "backend", "", "capability backend: bedrock, ollama or mock (default $CAPABILITY_BACKEND)")
	run.Flags().StringVar(&opts.transcriptPath, "transcript", "", "transcript log file (default ./logs/<time>.<backend>.json)")
	run.Flags().IntVar(&opts.concurrency, "concurrency", 0, "vendors worked on at once per phase (0 = all)")
	run.Flags().BoolVar(&opts.dump, "dump", false, "print the full run state instead of the report")
	run.Flags().BoolVar(&opts.otel, "otel", false, "export traces and metrics over OTLP")

	return run
}

func loadConfigs() (configs, error) {
	var cfg configs
	if err := envdecode.Decode(&cfg.model); err != nil {
		return cfg, fmt.Errorf("failed to decode model config: %w", err)
	}
	if err := envdecode.Decode(&cfg.agent); err != nil {
		return cfg, fmt.Errorf("failed to decode agent config: %w", err)
	}
	if err := envdecode.Decode(&cfg.notify); err != nil {
		return cfg, fmt.Errorf("failed to decode notify config: %w", err)
	}
	return cfg, nil
}

func runProcurement(ctx context.Context, opts runOptions, cfg configs, out io.Writer) error {
	order, err := loadOrder(opts.orderPath)
	if err != nil {
		return err
	}

	backend := opts.backend
	if backend == "" {
		backend = cfg.agent.CapabilityBackend
	}

	if opts.otel {
		_, _, otelShutdown, err := procureagent.InitOtel(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
			if err != nil {
				return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	capability, err := newCapability(backend, cfg, loadAWS)
	if err != nil {
		return err
	}

	api, err := newProcurementAPI(opts.vendorsPath, cfg.agent)
	if err != nil {
		return err
	}

	var documents procureagent.DocumentSource = storage.NewFileDocumentStore(cfg.agent.DocumentsDir)
	if cfg.agent.DocumentsS3Bucket != "" {
		c, err := loadAWS()
		if err != nil {
			return err
		}
		documents = storage.NewS3DocumentStore(s3.NewFromConfig(c), cfg.agent.DocumentsS3Bucket, cfg.agent.DocumentsS3Prefix)
	}

	orchestratorOpts := []negotiation.Option{
		negotiation.WithTeamID(cfg.agent.TeamID),
		negotiation.WithConcurrency(opts.concurrency),
	}

	switch {
	case cfg.agent.ReportsS3Bucket != "":
		c, err := loadAWS()
		if err != nil {
			return err
		}
		orchestratorOpts = append(orchestratorOpts, negotiation.WithReportArchive(storage.NewS3ReportStore(s3.NewFromConfig(c), cfg.agent.ReportsS3Bucket)))
	case cfg.agent.ReportsDir != "":
		orchestratorOpts = append(orchestratorOpts, negotiation.WithReportArchive(storage.NewFileReportStore(cfg.agent.ReportsDir)))
	}

	sink, closeSink := notify.New(cfg.notify, http.DefaultClient)
	defer closeSink()
	orchestratorOpts = append(orchestratorOpts, negotiation.WithProgressSink(sink))

	transcriptPath := opts.transcriptPath
	if transcriptPath == "" {
		transcriptPath = procureagent.NewTranscriptLogFilePath(backend)
	}
	logger, cleanup, err := newTranscriptLogger(transcriptPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush transcript log", "error", err)
		}
	}()

	orchestrator := negotiation.NewOrchestrator(
		api,
		negotiation.NewScreener(capability, documents),
		negotiation.NewPlanner(capability, api),
		negotiation.NewSessionRunner(api, capability, logger, cfg.agent.SessionTurns()),
		orchestratorOpts...,
	)

	state, err := orchestrator.Run(ctx, order)
	if err != nil {
		slog.Error("RESULT: Procurement run failed", "error", err)
		return err
	}

	if opts.dump {
		procureagent.Fdump(out, state)
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(state.Report)
}

func loadOrder(path string) (procureagent.OrderRequirement, error) {
	var order procureagent.OrderRequirement
	data, err := os.ReadFile(path)
	if err != nil {
		return order, fmt.Errorf("failed to read order: %w", err)
	}
	if err := json.Unmarshal(data, &order); err != nil {
		return order, fmt.Errorf("failed to parse order %s: %w", path, err)
	}
	return order, nil
}

func newCapability(backend string, cfg configs, loadAWS func() (aws.Config, error)) (procureagent.Capability, error) {
	switch backend {
	case "mock":
		return mock.NewCapability(), nil
	case "ollama":
		llm, err := ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: cfg.agent.BaseOllamaEndpoint,
			ModelID:      cfg.model.ModelID,
			HTTPClient:   http.DefaultClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		return ollama.NewCapability(llm), nil
	case "bedrock":
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		llm := bedrock.NewLLMClient(bedrockruntime.NewFromConfig(c), bedrock.LLMOptions{
			ModelID:     cfg.model.ModelID,
			MaxTokens:   cfg.model.MaxTokens,
			Temperature: cfg.model.Temperature,
			TopP:        cfg.model.TopP,
		})
		return bedrock.NewCapability(llm), nil
	default:
		return nil, fmt.Errorf("unknown capability backend %q", backend)
	}
}

func newProcurementAPI(vendorsPath string, cfg procureagent.AgentConfig) (procurement.API, error) {
	if vendorsPath != "" {
		d, err := procurement.NewFileDirectory(vendorsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load vendor fixture: %w", err)
		}
		slog.Info("SETUP: Using vendor fixture", "path", vendorsPath)
		return d, nil
	}
	client := procurement.NewClient(cfg.APIBase, cfg.TeamID, http.DefaultClient)
	return procurement.NewRetrying(client,
		procurement.WithMaxAttempts(cfg.TransportMaxAttempts),
		procurement.WithAttemptTimeout(cfg.TransportTimeout),
	), nil
}

func newTranscriptLogger(path string) (procureagent.TranscriptLogger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := procureagent.NewFileTranscriptLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
