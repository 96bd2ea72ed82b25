package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/observability"
	"github.com/provgraph/engine/internal/observability/logging"
	otelobs "github.com/provgraph/engine/internal/observability/otel"
	"github.com/provgraph/engine/internal/observability/receipt"
	"github.com/provgraph/engine/internal/version"
	"github.com/spf13/cobra"
)

// ANSI color codes shared by every subcommand's terminal output.
const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

var (
	logFormatFlag   string
	logLevelFlag    string
	logOutputFlag   string
	receiptPathFlag string
	receiptModeFlag string

	// OTel flags
	otelEnabledFlag     bool
	otelEndpointFlag    string
	otelProtocolFlag    string
	otelInsecureFlag    bool
	otelServiceNameFlag string
	otelSampleRatioFlag float64

	engineConfigFlag string
)

var rootCmd = &cobra.Command{
	Use:   "provgraph-engine",
	Short: "Deterministic knowledge-graph artifact engine",
	Long: `provgraph-engine ingests RDF sources into a graph, renders templates
against it, and attests, verifies, and diffs the resulting artifacts.`,
	Version: version.BuildVersion(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize context with operation ID
		ctx := observability.WithOpID(context.Background())

		// Create logger from flags
		logger, err := logging.NewLogger(logging.Config{
			Format: logFormatFlag,
			Level:  logLevelFlag,
			Output: logOutputFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Store logger in context
		ctx = logging.WithLogger(ctx, logger)

		// Initialize receipt writer if --receipt is set
		if receiptPathFlag != "" {
			mode := receiptModeFlag
			if mode == "" {
				mode = "overwrite"
			}
			rw, err := receipt.NewWriter(receiptPathFlag, mode)
			if err != nil {
				return fmt.Errorf("failed to initialize receipt writer: %w", err)
			}
			ctx = receipt.WithWriter(ctx, rw)
		}

		// Initialize OTel if enabled
		if otelEnabledFlag {
			cfg := otelobs.Config{
				Enabled:     true,
				Endpoint:    otelEndpointFlag,
				Protocol:    otelProtocolFlag,
				Insecure:    otelInsecureFlag,
				ServiceName: otelServiceNameFlag,
				SampleRatio: otelSampleRatioFlag,
			}
			h, err := otelobs.Init(ctx, cfg)
			if err != nil {
				// Log warning but don't fail - OTel is optional
				logger.Warn("otel", "failed to initialize OTel tracing", "error", err.Error())
			} else {
				ctx = otelobs.WithHandle(ctx, h)
			}
		}

		cmd.SetContext(ctx)

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			return nil
		}

		var errs []error

		// Shutdown OTel with timeout (warn-only, never fatal)
		// OTel failures should not affect command exit code
		if h := otelobs.From(ctx); h != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := h.Shutdown(shutdownCtx); err != nil {
				// Log warning but don't add to errs - graceful degradation
				if lg := logging.From(ctx); lg != nil {
					lg.Warn("otel", "shutdown failed", "error", err.Error())
				}
			}
			cancel()
		}

		// Close receipt writer (fatal - evidence not written)
		if rw := receipt.From(ctx); rw != nil {
			errs = append(errs, rw.Close())
		}

		// Close logger (fatal - flush buffers)
		if lg := logging.From(ctx); lg != nil {
			errs = append(errs, lg.Close())
		}

		return errors.Join(errs...)
	},
}

// Execute runs the root command, mapping the error taxonomy onto the
// engine's process exit codes (2 verification, 3 integrity, 4 invalid
// input, 1 anything else).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(engineerr.ExitCode(err))
	}
}

func init() {
	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "pretty",
		"Log format: pretty (default, no structured logs) or jsonl (SIEM-friendly)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logOutputFlag, "log-output", "stderr",
		"Log output: stderr (default) or file path")

	// Receipt flags
	rootCmd.PersistentFlags().StringVar(&receiptPathFlag, "receipt", "",
		"Path to write receipt artifact (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&receiptModeFlag, "receipt-mode", "overwrite",
		"Receipt mode: overwrite (default) or append")

	// OTel flags
	rootCmd.PersistentFlags().BoolVar(&otelEnabledFlag, "otel", false,
		"Enable OpenTelemetry tracing (disabled by default)")
	rootCmd.PersistentFlags().StringVar(&otelEndpointFlag, "otel-endpoint", "",
		"OTel exporter endpoint (default: OTEL_EXPORTER_OTLP_ENDPOINT or http://localhost:4318)")
	rootCmd.PersistentFlags().StringVar(&otelProtocolFlag, "otel-protocol", "otlphttp",
		"OTel protocol: otlphttp (default) or otlpgrpc")
	rootCmd.PersistentFlags().BoolVar(&otelInsecureFlag, "otel-insecure", false,
		"Allow insecure OTel connections (no TLS)")
	rootCmd.PersistentFlags().StringVar(&otelServiceNameFlag, "otel-service-name", "provgraph-engine",
		"OTel service name for traces")
	rootCmd.PersistentFlags().Float64Var(&otelSampleRatioFlag, "otel-sample-ratio", 1.0,
		"OTel sampling ratio (0.0-1.0)")

	rootCmd.PersistentFlags().StringVar(&engineConfigFlag, "config", "",
		"Path to an engine config YAML file (cas/attestation/drift settings)")

	rootCmd.AddCommand(GetIngestCmd())
	rootCmd.AddCommand(GetRenderCmd())
	rootCmd.AddCommand(GetAttestCmd())
	rootCmd.AddCommand(GetVerifyCmd())
	rootCmd.AddCommand(GetDiffCmd())
	rootCmd.AddCommand(GetKeygenCmd())
}
