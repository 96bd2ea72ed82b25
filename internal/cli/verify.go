package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/provgraph/engine/internal/attest"
	"github.com/provgraph/engine/internal/config"
	"github.com/provgraph/engine/internal/observability/logging"
	otelobs "github.com/provgraph/engine/internal/observability/otel"
	"github.com/provgraph/engine/internal/observability/receipt"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify an artifact's attestation against its content and an optional trust policy",
	Long: `Verify recomputes the artifact's hash, checks the attestation signature
(when present), and, when --policy is given, evaluates the attestation
against a trust policy's CEL rules and requirements.

Example:
  provgraph-engine verify --artifact dist/service.out --policy trust.yaml`,
	RunE: runVerify,
}

var (
	verifyArtifactFlag    string
	verifyAttestationFlag string
	verifyPolicyFlag      string
	verifyAllowExpired    bool
)

func init() {
	verifyCmd.Flags().StringVar(&verifyArtifactFlag, "artifact", "", "Path to the artifact to verify")
	verifyCmd.Flags().StringVar(&verifyAttestationFlag, "attestation", "", "Path to the attestation sidecar (defaults to <artifact>.attest.json)")
	verifyCmd.Flags().StringVar(&verifyPolicyFlag, "policy", "", "Path to a trust policy YAML file (optional)")
	verifyCmd.Flags().BoolVar(&verifyAllowExpired, "allow-expired", false, "Reduce, but do not eliminate, trust for an out-of-validity-window key")
	_ = verifyCmd.MarkFlagRequired("artifact")
}

// GetVerifyCmd returns the verify command.
func GetVerifyCmd() *cobra.Command {
	return verifyCmd
}

func runVerify(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	sess := receipt.Start(ctx, "provgraph-engine verify", os.Args[1:])
	var invalid bool
	defer func() {
		var opts []receipt.Option
		_ = sess.Finish(err, opts...)
		if invalid && err == nil {
			os.Exit(2)
		}
	}()

	content, err := os.ReadFile(verifyArtifactFlag)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}

	sidecarPath := verifyAttestationFlag
	if sidecarPath == "" {
		sidecarPath = attest.SidecarPath(verifyArtifactFlag)
	}
	att, err := attest.ReadSidecar(sidecarPath)
	if err != nil {
		return fmt.Errorf("reading attestation %s: %w", sidecarPath, err)
	}

	opts := attest.VerifyOptions{
		ArtifactContent: content,
		AllowExpired:    verifyAllowExpired,
	}
	if verifyPolicyFlag != "" {
		p, polErr := config.LoadTrustPolicy(verifyPolicyFlag)
		if polErr != nil {
			return fmt.Errorf("loading trust policy: %w", polErr)
		}
		opts.Policy = p
	}

	log := logging.From(ctx)
	start := time.Now()
	log.Event(ctx, "verify.start", map[string]any{"artifact": verifyArtifactFlag})

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Shutdown() }()

	opCtx, endSpan := otelobs.StartSpan(ctx, "engine.verify")
	result, err := eng.Verify(opCtx, att, opts)
	endSpan(err)
	if err != nil {
		log.Event(ctx, "verify.complete", map[string]any{"duration_ms": time.Since(start).Milliseconds(), "result": "error"})
		return fmt.Errorf("verify failed: %w", err)
	}

	log.Event(ctx, "verify.complete", map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
		"valid":       result.Valid,
		"trustScore":  result.TrustScore,
	})

	if result.Valid {
		fmt.Printf("%s✓ Verified: trust score %.2f%s\n", colorGreen, result.TrustScore, colorReset)
	} else {
		invalid = true
		fmt.Printf("%s✗ Verification failed (trust score %.2f)%s\n", colorRed, result.TrustScore, colorReset)
		for _, reason := range result.PolicyReasons {
			fmt.Printf("  - %s\n", reason)
		}
	}
	return nil
}
