package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/provgraph/engine/internal/drift"
	"github.com/provgraph/engine/internal/observability/logging"
	otelobs "github.com/provgraph/engine/internal/observability/otel"
	"github.com/provgraph/engine/internal/observability/receipt"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare an expected and actual artifact and report drift",
	Long: `Diff fingerprints both inputs, classifies the kind of change, and scores
a similarity and recommendation.

Example:
  provgraph-engine diff --expected dist/service.out --actual /live/service.out`,
	RunE: runDiff,
}

var (
	diffExpectedFlag string
	diffActualFlag   string
	diffIDFlag       string
	diffFormatFlag   string
)

func init() {
	diffCmd.Flags().StringVar(&diffExpectedFlag, "expected", "", "Path to the expected (rendered) artifact")
	diffCmd.Flags().StringVar(&diffActualFlag, "actual", "", "Path to the actual (observed) artifact")
	diffCmd.Flags().StringVar(&diffIDFlag, "id", "", "Identifier for this drift detection (defaults to the expected path)")
	diffCmd.Flags().StringVar(&diffFormatFlag, "format", "human", "Output format: human, json, or markdown")
	_ = diffCmd.MarkFlagRequired("expected")
	_ = diffCmd.MarkFlagRequired("actual")
}

// GetDiffCmd returns the diff command.
func GetDiffCmd() *cobra.Command {
	return diffCmd
}

func runDiff(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "provgraph-engine diff", os.Args[1:])
	var hasDrift bool
	var driftScore float64
	var summary string
	defer func() {
		_ = sess.Finish(err, receipt.WithDrift(hasDrift, driftScore, summary))
	}()

	expectedContent, err := os.ReadFile(diffExpectedFlag)
	if err != nil {
		return fmt.Errorf("reading expected artifact: %w", err)
	}
	actualContent, err := os.ReadFile(diffActualFlag)
	if err != nil {
		return fmt.Errorf("reading actual artifact: %w", err)
	}

	detectionID := diffIDFlag
	if detectionID == "" {
		detectionID = diffExpectedFlag
	}

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "diff.start", map[string]any{"id": detectionID})

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Shutdown() }()

	opCtx, endSpan := otelobs.StartSpan(ctx, "engine.diff")
	result, err := eng.Diff(opCtx, detectionID,
		drift.File(diffExpectedFlag, expectedContent),
		drift.File(diffActualFlag, actualContent))
	endSpan(err)
	if err != nil {
		log.Event(ctx, "diff.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "fail"})
		return fmt.Errorf("diff failed: %w", err)
	}

	hasDrift = result.HasDrift
	driftScore = result.DriftScore
	summary = fmt.Sprintf("similarity=%.4f", result.Similarity)

	log.Event(ctx, "diff.complete", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"hasDrift":    result.HasDrift,
		"similarity":  result.Similarity,
	})

	switch diffFormatFlag {
	case "json":
		data, marshalErr := drift.RenderJSON(result)
		if marshalErr != nil {
			return fmt.Errorf("rendering json: %w", marshalErr)
		}
		fmt.Println(string(data))
	case "markdown":
		fmt.Println(drift.RenderMarkdown(result))
	default:
		fmt.Print(drift.RenderHuman(result))
	}

	if result.HasDrift {
		os.Exit(1)
	}
	return nil
}
