package graph

import (
	"strconv"
	"strings"
	"time"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// Source is one RDF input to Ingest.
type Source struct {
	Kind   string // "rdf"
	Body   []byte
	Format string // "text/turtle"
}

// Options configures an Ingest call; OperationID is carried onto the
// resulting Graph's metadata and IngestedAt is the caller-injected clock
// value.
type Options struct {
	OperationID string
	IngestedAt  time.Time
}

// Ingest runs the full ingestion algorithm: parse every source,
// checksum triples, build the deduplicated entity/relationship view, and
// compute the Graph's content-addressed id.
func Ingest(sources []Source, opts Options) (*model.Graph, error) {
	var allTriples []RawTriple
	var rawConcat strings.Builder

	for i, src := range sources {
		if src.Format != "" && src.Format != "text/turtle" {
			return nil, engineerr.New(engineerr.KindUnsupportedFmt, "graph: unsupported source format %q at index %d", src.Format, i)
		}
		ts, err := ParseTurtle(src.Body, i)
		if err != nil {
			return nil, err
		}
		allTriples = append(allTriples, ts...)
		rawConcat.Write(src.Body)
	}

	triples := make([]model.Triple, 0, len(allTriples))
	seenTriples := make(map[string]bool, len(allTriples))
	for _, rt := range allTriples {
		key := rt.Subject + "|" + rt.Predicate + "|" + rt.Object
		if seenTriples[key] {
			continue
		}
		seenTriples[key] = true
		triples = append(triples, model.Triple{
			Subject:    rt.Subject,
			Predicate:  rt.Predicate,
			Object:     rt.Object,
			ObjectKind: model.ObjectKind(rt.ObjectKind),
			Checksum:   canon.Short(canon.HashBytes([]byte(rt.Subject + rt.Predicate + rt.Object))),
		})
	}

	entities, err := buildEntities(allTriples)
	if err != nil {
		return nil, err
	}
	relationships := buildRelationships(allTriples)

	g := &model.Graph{
		ID:            canon.Short(canon.HashBytes([]byte(rawConcat.String()))),
		Entities:      entities,
		Relationships: relationships,
		Triples:       triples,
		Metadata: model.GraphMetadata{
			SourceCount: len(sources),
			IngestedAt:  opts.IngestedAt,
			OperationID: opts.OperationID,
		},
	}
	return g, nil
}

// entityBuild accumulates an entity's fields across the two ingest passes
// before being finalized into a model.Entity.
type entityBuild struct {
	id         string
	typ        string
	typSet     bool
	properties map[string][]string
	propOrder  []string
}

func buildEntities(triples []RawTriple) ([]model.Entity, error) {
	order := []string{}
	builds := map[string]*entityBuild{}

	get := func(id string) *entityBuild {
		b, ok := builds[id]
		if !ok {
			b = &entityBuild{id: id, properties: map[string][]string{}}
			builds[id] = b
			order = append(order, id)
		}
		return b
	}

	// Pass 1: rdf:type triples establish/overwrite an entity's type.
	for _, t := range triples {
		if t.Predicate != rdfType {
			continue
		}
		b := get(t.Subject)
		b.typ = localName(t.Object)
		b.typSet = true
	}

	// Pass 2: every other triple with an IRI subject becomes a property.
	for _, t := range triples {
		if t.Predicate == rdfType {
			continue
		}
		b := get(t.Subject)
		name := localName(t.Predicate)
		if _, ok := b.properties[name]; !ok {
			b.propOrder = append(b.propOrder, name)
		}
		b.properties[name] = append(b.properties[name], t.Object)
	}

	entities := make([]model.Entity, 0, len(order))
	for _, id := range order {
		b := builds[id]
		typ := b.typ
		if !b.typSet {
			typ = "Entity"
		}
		props := make(map[string][]string, len(b.properties))
		for k, v := range b.properties {
			props[k] = v
		}
		e := model.Entity{
			ID:         id,
			Type:       typ,
			Properties: props,
		}
		hash, err := canon.Hash(struct {
			ID         string              `json:"id"`
			Type       string              `json:"type"`
			Properties map[string][]string `json:"properties"`
		}{e.ID, e.Type, e.Properties})
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindInput, err)
		}
		e.Checksum = canon.Short(hash)
		entities = append(entities, e)
	}
	return entities, nil
}

func buildRelationships(triples []RawTriple) []model.Relationship {
	seen := map[string]bool{}
	var out []model.Relationship
	for _, t := range triples {
		if t.ObjectKind != "IRI" {
			continue
		}
		typ := localName(t.Predicate)
		key := t.Subject + "|" + typ + "|" + t.Object
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Relationship{
			From:     t.Subject,
			To:       t.Object,
			Type:     typ,
			Checksum: canon.Short(canon.HashBytes([]byte(key))),
		})
	}
	return out
}

// SemanticHash parses ttl and hashes its triple set order-independently:
// two sources with the same triples in different textual order hash
// identically.
func SemanticHash(ttl []byte) (string, error) {
	raw, err := ParseTurtle(ttl, 0)
	if err != nil {
		return "", err
	}
	rdf := make([]canon.RDFTriple, len(raw))
	for i, t := range raw {
		rdf[i] = canon.RDFTriple{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
	}
	return canon.SemanticHashRDF(rdf), nil
}

// localName returns the characters after the last '/' or '#', or the
// full IRI if neither appears.
func localName(iri string) string {
	if idx := strings.LastIndexAny(iri, "/#"); idx >= 0 && idx+1 < len(iri) {
		return iri[idx+1:]
	}
	return iri
}

// PropertyInt converts a property's first value to an int64 if it looks
// like an xsd:integer lexical form, for render-context convenience
// views.
func PropertyInt(values []string) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

