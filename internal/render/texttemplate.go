package render

import (
	"bufio"
	"context"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// TextTemplateRenderer is the default Renderer: Go's text/template with the
// sprig function map, configured for byte-stable output via
// Option("missingkey=zero") (so
// strictUndefined=false never panics) plus a line-trimming pass over
// {{- ... -}}-free whitespace-only template lines.
type TextTemplateRenderer struct {
	cfg Config
}

// NewTextTemplateRenderer constructs the default renderer.
func NewTextTemplateRenderer(cfg Config) *TextTemplateRenderer {
	return &TextTemplateRenderer{cfg: cfg}
}

func (r *TextTemplateRenderer) Render(_ context.Context, templateBody string, data map[string]interface{}) (string, error) {
	body := templateBody
	if r.cfg.TrimBlocks || r.cfg.LstripBlocks {
		body = trimBlockLines(body)
	}

	tmpl, err := template.New("artifact").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(body)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// trimBlockLines drops leading/trailing whitespace around lines that
// consist solely of a template action, emulating trim_blocks/lstrip_blocks
// so that control-flow-only lines don't leave blank output lines behind.
func trimBlockLines(body string) string {
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if !first {
			out.WriteByte('\n')
		}
		first = false
		if isBlockOnlyLine(trimmed) {
			out.WriteString(trimmed)
		} else {
			out.WriteString(line)
		}
	}
	return out.String()
}

func isBlockOnlyLine(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return false
	}
	inner := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	for _, kw := range []string{"if ", "else", "end", "range ", "with ", "block ", "define "} {
		if strings.HasPrefix(inner, kw) || inner == strings.TrimSuffix(kw, " ") {
			return true
		}
	}
	return false
}
