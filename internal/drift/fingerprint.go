package drift

import (
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/graph"
)

// Fingerprint is the per-input summary the comparator works from: a raw
// content hash, a content-type-aware semantic hash, size, and
// the detected content type.
type Fingerprint struct {
	ContentHash  string
	SemanticHash string
	Size         int
	ContentType  ContentType
}

// FingerprintCache caches fingerprints keyed by (contentHash, contentType),
// with single-writer-per-key compute-or-wait semantics: callers
// racing on the same key share one computation instead of duplicating the
// semantic-hash work. Bounded by an LRU eviction policy.
type FingerprintCache struct {
	lru   *lru.Cache[string, Fingerprint]
	group singleflight.Group
}

// NewFingerprintCache constructs a cache holding at most capacity entries.
func NewFingerprintCache(capacity int) (*FingerprintCache, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[string, Fingerprint](capacity)
	if err != nil {
		return nil, err
	}
	return &FingerprintCache{lru: c}, nil
}

func cacheKey(contentHash string, ct ContentType) string {
	return string(ct) + "\x1f" + contentHash
}

// Fingerprint computes (or returns the cached) fingerprint for in, sniffing
// its content type from path (if any) and its bytes.
func (c *FingerprintCache) Fingerprint(in Input) (Fingerprint, error) {
	b, err := in.bytesOf()
	if err != nil {
		return Fingerprint{}, err
	}
	contentHash := canon.HashBytes(b)
	ct := DetectContentType(in.Path(), b)
	key := cacheKey(contentHash, ct)

	if c == nil {
		return computeFingerprint(b, contentHash, ct)
	}
	if fp, ok := c.lru.Get(key); ok {
		return fp, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if fp, ok := c.lru.Get(key); ok {
			return fp, nil
		}
		fp, err := computeFingerprint(b, contentHash, ct)
		if err != nil {
			return Fingerprint{}, err
		}
		c.lru.Add(key, fp)
		return fp, nil
	})
	if err != nil {
		return Fingerprint{}, err
	}
	return v.(Fingerprint), nil
}

func computeFingerprint(b []byte, contentHash string, ct ContentType) (Fingerprint, error) {
	semantic, err := semanticHash(b, ct)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{ContentHash: contentHash, SemanticHash: semantic, Size: len(b), ContentType: ct}, nil
}

// semanticHash dispatches to the canon semantic-hash variant matching
// ct. Text falls back to the content hash: there is no lossy normalization
// defined for generic text, so "semantic" and "content" coincide.
func semanticHash(b []byte, ct ContentType) (string, error) {
	switch ct {
	case ContentTypeJSON:
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			// Not parseable JSON despite sniffing; fall back to content hash
			// rather than failing the whole comparison.
			return canon.HashBytes(b), nil
		}
		return canon.SemanticHashJSON(v)
	case ContentTypeRDF:
		triples, err := graph.ParseTurtle(b, 0)
		if err != nil {
			return canon.HashBytes(b), nil
		}
		rdfTriples := make([]canon.RDFTriple, len(triples))
		for i, t := range triples {
			rdfTriples[i] = canon.RDFTriple{Subject: t.Subject, Predicate: t.Predicate, Object: t.Object}
		}
		return canon.SemanticHashRDF(rdfTriples), nil
	case ContentTypeCode:
		return canon.SemanticHashCode(b), nil
	default:
		return canon.HashBytes(b), nil
	}
}
