package receipt

import (
	"context"
	"time"

	"github.com/provgraph/engine/internal/observability"
)

// MaxErrorLength is the maximum length for error strings in receipts.
const MaxErrorLength = 2048

// Session tracks command execution
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

// Start session
func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option configures receipt
type Option func(*Receipt)

// WithGraph option
func WithGraph(g GraphSummary) Option {
	return func(r *Receipt) {
		r.Graph = &g
	}
}

// WithRender option
func WithRender(rs RenderSummary) Option {
	return func(r *Receipt) {
		r.Render = &rs
	}
}

// WithAttest option
func WithAttest(a AttestSummary) Option {
	return func(r *Receipt) {
		r.Attest = &a
	}
}

// WithDrift option
func WithDrift(hasDrift bool, score float64, summary string) Option {
	return func(r *Receipt) {
		r.Drift = &DriftSummary{
			HasDrift:   hasDrift,
			DriftScore: score,
			Summary:    summary,
		}
	}
}

// Finish and write receipt
func (s *Session) Finish(err error, opts ...Option) error {
	w := From(s.ctx)
	if w == nil {
		// No writer configured, receipts disabled
		return nil
	}

	// Redact sensitive CLI arguments before storing
	redactedArgs, wasRedacted := RedactArgs(s.args)

	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.Format(time.RFC3339Nano),
		TsEnd:         time.Now().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          redactedArgs,
		ArgsRedacted:  wasRedacted,
	}

	// Set result
	if err != nil {
		r.Result = Result{
			Status: "fail",
			Error:  truncateError(err.Error()),
		}
	} else {
		r.Result = Result{
			Status: "success",
		}
	}

	// Apply options
	for _, opt := range opts {
		opt(&r)
	}

	return w.Write(r)
}

// truncateError helper
func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
