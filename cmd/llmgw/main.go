package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liuyipei/pdf-tokens/calllog"
	"github.com/liuyipei/pdf-tokens/config"
	"github.com/liuyipei/pdf-tokens/gateway"
	"github.com/liuyipei/pdf-tokens/health"
	"github.com/liuyipei/pdf-tokens/llm"
	"github.com/liuyipei/pdf-tokens/llm/anthropic"
	"github.com/liuyipei/pdf-tokens/llm/openai"
	gwlogger "github.com/liuyipei/pdf-tokens/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		provider   = flag.String("provider", "", "Provider to use (anthropic, openai). If empty, picks the first capable one")
		model      = flag.String("model", "", "Model id. If empty, uses the provider's first listed model")
		system     = flag.String("system", "", "System prompt")
		imagePath  = flag.String("image", "", "Path to an image file to attach")
		pdfPath    = flag.String("pdf", "", "Path to a PDF file to attach")
		maxTokens  = flag.Int64("max-tokens", 0, "Max output tokens (0 = model default)")
		stream     = flag.Bool("stream", false, "Stream the response")
		timeout    = flag.Int("timeout", 300, "Overall request timeout in seconds")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		configPath = flag.String("config", config.DefaultPath(), "Path to config file")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	prompt := strings.Join(flag.Args(), " ")
	if prompt == "" {
		return fmt.Errorf("usage: llmgw [flags] <prompt>")
	}

	logger, err := gwlogger.Init(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// ---------------------------
	// 1. Build provider adapters
	// ---------------------------

	anthropicAdapter := anthropic.New(anthropic.Config{
		APIKey:  cfg.Anthropic.APIKey,
		BaseURL: cfg.Anthropic.BaseURL,
		Timeout: time.Duration(cfg.Anthropic.Timeout) * time.Second,
	}, logger)
	openaiAdapter := openai.New(openai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Organization: cfg.OpenAI.Organization,
		Timeout:      time.Duration(cfg.OpenAI.Timeout) * time.Second,
	}, logger)

	// ---------------------------
	// 2. Build the gateway
	// ---------------------------

	gw := gateway.New(gateway.Config{
		MaxRetries:        cfg.Gateway.MaxRetries,
		BackoffBase:       time.Duration(cfg.Gateway.BackoffBaseMs) * time.Millisecond,
		BackoffMultiplier: cfg.Gateway.BackoffMultiplier,
	}, logger)
	gw.Register(anthropicAdapter)
	gw.Register(openaiAdapter)

	// ---------------------------
	// 3. Call log (optional)
	// ---------------------------

	if !cfg.CallLog.Disabled {
		dbPath := cfg.CallLog.Path
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return fmt.Errorf("failed to create call log directory: %w", err)
		}
		db, err := sql.Open("sqlite3", dbPath)
		if err != nil {
			return fmt.Errorf("failed to open call log database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors

		if err := calllog.Migrate(db, logger); err != nil {
			return fmt.Errorf("failed to run call log migrations: %w", err)
		}
		gw.SetRecorder(calllog.NewStore(db))
	}

	// ---------------------------
	// 4. Health monitor (optional)
	// ---------------------------

	if !cfg.Health.Disabled {
		monitor := health.NewMonitor(logger, time.Duration(cfg.Health.Timeout)*time.Second)
		monitor.Register(anthropicAdapter)
		monitor.Register(openaiAdapter)
		if err := monitor.Start(cfg.Health.Schedule); err != nil {
			return fmt.Errorf("failed to start health monitor: %w", err)
		}
		defer monitor.Stop()
	}

	// ---------------------------
	// 5. Build and dispatch the request
	// ---------------------------

	req, err := buildRequest(*provider, *model, *system, prompt, *imagePath, *pdfPath, *maxTokens)
	if err != nil {
		return err
	}

	if req.Provider == "" {
		route := gw.FindCapableProvider(req.PartTypes(), "")
		if route == nil {
			return fmt.Errorf("no configured provider supports this content")
		}
		req.Provider = route.Provider
		if req.Model == "" {
			req.Model = route.Model
		}
		logger.Info().Str("provider", route.Provider).Str("model", route.Model).Msg("Routed request")
	}
	if req.Model == "" {
		adapter, ok := gw.Adapter(req.Provider)
		if !ok {
			return fmt.Errorf("unknown provider %q", req.Provider)
		}
		models := adapter.Models()
		if len(models) == 0 {
			return fmt.Errorf("provider %q lists no models", req.Provider)
		}
		req.Model = models[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	if *stream {
		return streamResponse(ctx, gw, req)
	}

	resp, err := gw.Send(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(resp.Text())
	logger.Info().
		Str("model", resp.Model).
		Str("stop_reason", string(resp.StopReason)).
		Int64("input_tokens", resp.Usage.InputTokens).
		Int64("output_tokens", resp.Usage.OutputTokens).
		Msg("Request complete")
	return nil
}

func buildRequest(provider, model, system, prompt, imagePath, pdfPath string, maxTokens int64) (*llm.Request, error) {
	var content []llm.ContentPart

	if imagePath != "" {
		data, err := os.ReadFile(imagePath) //#nosec 304 -- user-specified attachment
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		content = append(content, llm.NewImagePart(
			base64.StdEncoding.EncodeToString(data),
			imageMediaType(imagePath),
		))
	}
	if pdfPath != "" {
		data, err := os.ReadFile(pdfPath) //#nosec 304 -- user-specified attachment
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf: %w", err)
		}
		content = append(content, llm.NewPDFPart(
			base64.StdEncoding.EncodeToString(data),
			filepath.Base(pdfPath),
		))
	}
	content = append(content, llm.NewTextPart(prompt))

	req := &llm.Request{
		Provider: provider,
		Model:    model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
	}
	if system != "" {
		req.System = system
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	return req, nil
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func streamResponse(ctx context.Context, gw *gateway.Gateway, req *llm.Request) error {
	stream, err := gw.SendStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close() //nolint:errcheck // Close after full drain reports nothing new

	for stream.Next() {
		chunk := stream.Chunk()
		if chunk.Type == llm.ChunkTextDelta {
			fmt.Print(chunk.Text)
		}
	}
	fmt.Println()
	if err := stream.Err(); err != nil {
		return err
	}
	return nil
}
