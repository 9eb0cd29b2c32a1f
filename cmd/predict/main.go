package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/cypherlabdev/equine-oracle/internal/client"
	"github.com/cypherlabdev/equine-oracle/internal/config"
	"github.com/cypherlabdev/equine-oracle/internal/form"
	"github.com/cypherlabdev/equine-oracle/internal/models"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("predict", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	asJSON := flags.Bool("json", false, "print the result as JSON")
	flags.String("base-url", "", "prediction service base URL")
	flags.Duration("timeout", 0, "prediction call timeout, 0 waits for the service")
	flags.String("resolution-policy", "", "last_resolved_wins or discard_stale")
	flags.String("log-level", "", "debug, info, warn, error")
	flags.String("log-format", "", "json, console")

	// One flag per form field; values are raw text coerced like the form does
	defaults := form.Values(models.DefaultFormState())
	fieldFlags := make(map[string]string, len(defaults))
	for _, f := range form.Fields() {
		name := flagName(f.Name)
		fieldFlags[name] = f.Name
		flags.String(name, strconv.FormatFloat(defaults[f.Name], 'f', -1, 64), f.Label)
	}

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg, err := config.LoadConfigWithFlags(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}
	logger := setupLogger(cfg.Logging)

	raw := make(map[string]string)
	flags.Visit(func(f *pflag.Flag) {
		if field, ok := fieldFlags[f.Name]; ok {
			raw[field] = f.Value.String()
		}
	})

	state := models.DefaultFormState()
	if err := form.Apply(&state, raw); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	policy, err := cfg.Prediction.Policy()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	orchestrator := service.NewOrchestrator(
		client.NewPredictionClient(cfg.Prediction.ToClientConfig(), logger),
		logger,
		service.WithPolicy(policy),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator.Submit(ctx, state)

	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "interrupted")
		return 130
	}

	outcome := orchestrator.State()
	view := service.NewView(outcome)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	} else if outcome.Phase == models.PhaseSuccess {
		fmt.Printf("Prediction: %s\nConfidence: %s\n", view.Prediction, view.Confidence)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", view.Error)
	}

	if outcome.Phase != models.PhaseSuccess {
		return 1
	}
	return 0
}

// flagName turns a form field name into a flag name, e.g. daysSinceLastRace -> days-since-last-race
func flagName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// setupLogger writes logs to stderr so stdout carries only the result
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Str("service", "equine-oracle-predict").Logger()
}
