package render

import (
	"strconv"

	"github.com/provgraph/engine/internal/model"
)

// BuildContext constructs the render context for graph:
// the raw entities/relationships/triples/metadata plus convenience views,
// with caller overrides merged last.
func BuildContext(graph *model.Graph, overrides map[string]interface{}) map[string]interface{} {
	ctx := map[string]interface{}{
		"entities":      graph.Entities,
		"relationships": graph.Relationships,
		"triples":       graph.Triples,
		"metadata":      graph.Metadata,
	}

	if svc := firstOfType(graph, "RESTService"); svc != nil {
		ctx["service"] = projectProperties(*svc)
	}
	if main := firstOfType(graph, "Entity"); main != nil {
		ctx["mainEntity"] = projectProperties(*main)
	}
	ctx["endpoints"] = buildEndpoints(graph)

	for k, v := range overrides {
		ctx[k] = v
	}
	return ctx
}

func firstOfType(graph *model.Graph, typ string) *model.Entity {
	for i := range graph.Entities {
		if graph.Entities[i].Type == typ {
			return &graph.Entities[i]
		}
	}
	return nil
}

// projectProperties exposes a Properties map where single-valued
// predicates have already been flattened to their first value.
func projectProperties(e model.Entity) map[string]interface{} {
	out := map[string]interface{}{
		"id":   e.ID,
		"type": e.Type,
	}
	props := make(map[string]interface{}, len(e.Properties))
	for k, v := range e.Properties {
		if len(v) == 0 {
			continue
		}
		if n, err := strconv.ParseInt(v[0], 10, 64); err == nil {
			props[k] = n
		} else {
			props[k] = v[0]
		}
	}
	out["properties"] = props
	return out
}

// endpoint is the convenience view for Entities of type "Endpoint":
// method/path/status/path-parameter fields projected from
// properties.
type endpoint struct {
	ID             string   `json:"id"`
	Method         string   `json:"method,omitempty"`
	Path           string   `json:"path,omitempty"`
	Status         string   `json:"status,omitempty"`
	PathParameters []string `json:"pathParameters,omitempty"`
}

func buildEndpoints(graph *model.Graph) []endpoint {
	var out []endpoint
	for _, e := range graph.EntitiesByType("Endpoint") {
		ep := endpoint{ID: e.ID}
		if v, ok := e.Properties["method"]; ok && len(v) > 0 {
			ep.Method = v[0]
		}
		if v, ok := e.Properties["path"]; ok && len(v) > 0 {
			ep.Path = v[0]
		}
		if v, ok := e.Properties["status"]; ok && len(v) > 0 {
			ep.Status = v[0]
		}
		if v, ok := e.Properties["pathParameter"]; ok {
			ep.PathParameters = v
		}
		out = append(out, ep)
	}
	return out
}
