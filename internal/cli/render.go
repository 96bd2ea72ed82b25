package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/model"
	"github.com/provgraph/engine/internal/observability/logging"
	otelobs "github.com/provgraph/engine/internal/observability/otel"
	"github.com/provgraph/engine/internal/observability/receipt"
	"github.com/provgraph/engine/internal/orchestrator"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render templates against a graph and store the resulting artifacts",
	Long: `Render loads a graph produced by "ingest" and one or more templates,
renders each through the configured engine, hashes the output, and stores
the bytes in the content-addressed store.

Example:
  provgraph-engine render --graph graph.json --template service.tmpl --out-dir dist/`,
	RunE: runRender,
}

var (
	renderGraphFlag     string
	renderTemplateFlags []string
	renderOutDirFlag    string
)

func init() {
	renderCmd.Flags().StringVarP(&renderGraphFlag, "graph", "g", "graph.json", "Path to the graph JSON produced by ingest")
	renderCmd.Flags().StringArrayVarP(&renderTemplateFlags, "template", "T", nil, "Path to a template file (repeatable)")
	renderCmd.Flags().StringVar(&renderOutDirFlag, "out-dir", ".", "Directory artifacts are written to")
}

// GetRenderCmd returns the render command.
func GetRenderCmd() *cobra.Command {
	return renderCmd
}

func runRender(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "provgraph-engine render", os.Args[1:])
	var lastRender *receipt.RenderSummary
	defer func() {
		var opts []receipt.Option
		if lastRender != nil {
			opts = append(opts, receipt.WithRender(*lastRender))
		}
		_ = sess.Finish(err, opts...)
	}()

	if len(renderTemplateFlags) == 0 {
		return fmt.Errorf("at least one --template is required")
	}

	graphData, err := os.ReadFile(renderGraphFlag)
	if err != nil {
		return fmt.Errorf("reading graph %s: %w", renderGraphFlag, err)
	}
	var g model.Graph
	if err := json.Unmarshal(graphData, &g); err != nil {
		return fmt.Errorf("parsing graph: %w", err)
	}

	templates := make([]model.Template, 0, len(renderTemplateFlags))
	for _, path := range renderTemplateFlags {
		body, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading template %s: %w", path, readErr)
		}
		id := filepath.Base(path)
		templates = append(templates, model.Template{
			ID:         id,
			Body:       string(body),
			Type:       "text",
			OutputPath: filepath.Join(renderOutDirFlag, id+".out"),
			Hash:       canon.HashBytes(body),
		})
	}

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "render.start", map[string]any{"templateCount": len(templates)})

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Shutdown() }()

	if err := os.MkdirAll(renderOutDirFlag, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	opCtx, endSpan := otelobs.StartSpan(ctx, "engine.generate")
	artifacts, err := eng.Generate(opCtx, &g, templates, orchestrator.GenerateOptions{})
	endSpan(err)
	if err != nil {
		log.Event(ctx, "render.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "fail"})
		return fmt.Errorf("render failed: %w", err)
	}

	for i, artifact := range artifacts {
		if err := os.WriteFile(artifact.OutputPath, artifact.Content, 0o644); err != nil {
			return fmt.Errorf("writing artifact %s: %w", artifact.OutputPath, err)
		}
		lastRender = &receipt.RenderSummary{
			TemplateID: templates[i].ID,
			ArtifactID: artifact.ID,
			Hash:       artifact.Hash,
			Size:       artifact.Size,
		}
		fmt.Printf("%s✓ Rendered %s -> %s%s\n", colorGreen, templates[i].ID, artifact.OutputPath, colorReset)
	}

	log.Event(ctx, "render.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "success"})
	return nil
}
