package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/provgraph/engine/internal/attest"
	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/model"
	"github.com/provgraph/engine/internal/observability/logging"
	otelobs "github.com/provgraph/engine/internal/observability/otel"
	"github.com/provgraph/engine/internal/observability/receipt"
	"github.com/provgraph/engine/internal/orchestrator"
	"github.com/spf13/cobra"
)

var attestCmd = &cobra.Command{
	Use:   "attest",
	Short: "Bind an artifact, its template, and its graph into a signed provenance record",
	Long: `Attest writes a ".attest.json" sidecar next to the artifact, signing it
with the configured Ed25519 key when one is available.

Example:
  provgraph-engine attest --artifact dist/service.out --template service.tmpl --graph graph.json`,
	RunE: runAttest,
}

var (
	attestArtifactFlag string
	attestTemplateFlag string
	attestGraphFlag    string
	attestFullFlag     bool
)

func init() {
	attestCmd.Flags().StringVar(&attestArtifactFlag, "artifact", "", "Path to the rendered artifact")
	attestCmd.Flags().StringVar(&attestTemplateFlag, "template", "", "Path to the template that produced the artifact")
	attestCmd.Flags().StringVar(&attestGraphFlag, "graph", "", "Path to the graph the artifact was rendered from (optional)")
	attestCmd.Flags().BoolVar(&attestFullFlag, "full", false, "Write a full attestation (embeds the graph and template) instead of minimal")
	_ = attestCmd.MarkFlagRequired("artifact")
	_ = attestCmd.MarkFlagRequired("template")
}

// GetAttestCmd returns the attest command.
func GetAttestCmd() *cobra.Command {
	return attestCmd
}

func runAttest(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "provgraph-engine attest", os.Args[1:])
	var summary *receipt.AttestSummary
	defer func() {
		var opts []receipt.Option
		if summary != nil {
			opts = append(opts, receipt.WithAttest(*summary))
		}
		_ = sess.Finish(err, opts...)
	}()

	content, err := os.ReadFile(attestArtifactFlag)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	templateBody, err := os.ReadFile(attestTemplateFlag)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	artifact := model.Artifact{
		ID:      attestArtifactFlag,
		Content: content,
		Hash:    canon.HashBytes(content),
		Size:    len(content),
	}
	tmpl := model.Template{ID: attestTemplateFlag, Hash: canon.HashBytes(templateBody)}

	var g *model.Graph
	if attestGraphFlag != "" {
		data, readErr := os.ReadFile(attestGraphFlag)
		if readErr != nil {
			return fmt.Errorf("reading graph: %w", readErr)
		}
		var parsed model.Graph
		if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
			return fmt.Errorf("parsing graph: %w", jsonErr)
		}
		g = &parsed
	}

	cfg, err := loadEngineConfig()
	if err != nil {
		return err
	}
	if !cfg.AttestationEnabled() {
		fmt.Printf("%s⚠ Attestation disabled by configuration; nothing written%s\n", colorYellow, colorReset)
		return nil
	}

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "attest.start", map[string]any{"artifact": attestArtifactFlag})

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Shutdown() }()

	format := model.AttestationFormatMinimal
	if attestFullFlag {
		format = model.AttestationFormatFull
	}

	opCtx, endSpan := otelobs.StartSpan(ctx, "engine.attest")
	att, err := eng.Attest(opCtx, artifact, orchestrator.AttestOptions{
		ArtifactPath: attestArtifactFlag,
		Template:     tmpl,
		TemplatePath: attestTemplateFlag,
		Graph:        g,
		GraphPath:    attestGraphFlag,
		Format:       format,
	})
	endSpan(err)
	if err != nil {
		log.Event(ctx, "attest.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "fail"})
		return fmt.Errorf("attest failed: %w", err)
	}

	summary = &receipt.AttestSummary{Format: string(att.Format)}
	if att.Signature != nil {
		summary.KeyID = attest.KeyFingerprint(att.Signature.PublicKey)
	}

	log.Event(ctx, "attest.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "success"})
	if att.Signature != nil {
		fmt.Printf("%s✓ Attestation signed and written: %s%s\n", colorGreen, attest.SidecarPath(attestArtifactFlag), colorReset)
	} else {
		fmt.Printf("%s⚠ Attestation written unsigned (no signing key configured): %s%s\n", colorYellow, attest.SidecarPath(attestArtifactFlag), colorReset)
	}
	return nil
}
