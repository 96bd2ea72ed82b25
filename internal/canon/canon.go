// Package canon implements deterministic canonicalization and hashing:
// canonical JSON with sorted object keys, stable array ordering (with
// opt-in set semantics), millisecond-precision date serialization, and a
// tagged encoding for binary blobs. It also provides the three
// semantic-hash variants used by the drift detector: RDF, JSON, and code.
//
// Canonicalize walks Go values with reflect instead of round-tripping
// through encoding/json first, so that time.Time and []byte retain their
// special canonical encodings (ISO-8601-with-milliseconds and the
// {__type:"Binary"} wrapper respectively) instead of encoding/json's
// defaults (RFC3339Nano, raw base64 string).
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/provgraph/engine/internal/engineerr"
)

// Set marks a slice as having set semantics: elements are sorted by their
// own canonical JSON representation rather than preserving input order.
type Set []interface{}

// Binary marks a byte slice that must serialize via the {__type:"Binary"}
// wrapper. Plain []byte values are treated the same way automatically.
type Binary []byte

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// Canonicalize produces the canonical JSON encoding of v.
func Canonicalize(v interface{}) ([]byte, error) {
	cv, err := canonicalizeValue(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return json.Marshal(cv)
}

// Hash returns SHA-256(CanonicalJSON(v)) as lowercase hex.
func Hash(v interface{}) (string, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}

// ShortHash returns the first 16 hex characters of Hash(v).
func ShortHash(v interface{}) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return h[:16], nil
}

// HashBytes hashes a buffer directly with no canonicalization. CAS blobs
// and artifact bytes use this identity.
func HashBytes(b []byte) string {
	return hashBytes(b)
}

// Short truncates a full hex hash to its 16-character short form.
func Short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16]
}

// RDFTriple is the minimal shape SemanticHashRDF needs from a parsed triple;
// internal/graph.Triple satisfies it structurally.
type RDFTriple struct {
	Subject   string
	Predicate string
	Object    string
}

// SemanticHashRDF hashes a triple set independent of input order: triples
// are sorted by (s,p,o) and the sorted stream is hashed. Identical triple
// sets in any source order hash identically.
func SemanticHashRDF(triples []RDFTriple) string {
	sorted := make([]RDFTriple, len(triples))
	copy(sorted, triples)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Subject != sorted[j].Subject {
			return sorted[i].Subject < sorted[j].Subject
		}
		if sorted[i].Predicate != sorted[j].Predicate {
			return sorted[i].Predicate < sorted[j].Predicate
		}
		return sorted[i].Object < sorted[j].Object
	})
	var buf bytes.Buffer
	for _, t := range sorted {
		buf.WriteString(t.Subject)
		buf.WriteByte('\x1f')
		buf.WriteString(t.Predicate)
		buf.WriteByte('\x1f')
		buf.WriteString(t.Object)
		buf.WriteByte('\n')
	}
	return hashBytes(buf.Bytes())
}

// SemanticHashJSON hashes the canonical JSON encoding of v. Identical to
// Hash; named distinctly so call sites using the semantic variants read
// clearly.
func SemanticHashJSON(v interface{}) (string, error) {
	return Hash(v)
}

var (
	lineCommentRE   = regexp.MustCompile(`//[^\n]*`)
	blockCommentRE  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRunRE = regexp.MustCompile(`\s+`)
)

// SemanticHashCode hashes a whitespace/comment-normalized form of source
// text. This is intentionally lossy and conservative: it MUST
// NOT be used as a cryptographic artifact hash, only for drift
// classification.
func SemanticHashCode(src []byte) string {
	s := string(src)
	s = blockCommentRE.ReplaceAllString(s, " ")
	s = lineCommentRE.ReplaceAllString(s, " ")
	s = whitespaceRunRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return hashBytes([]byte(s))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// canonicalizeValue recursively converts v into a tree of
// map[string]interface{}/[]interface{}/primitives suitable for
// json.Marshal to emit in canonical form.
func canonicalizeValue(rv reflect.Value) (interface{}, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch v := rv.Interface().(type) {
	case nil:
		return nil, nil
	case Binary:
		return binaryWrapper(v), nil
	case []byte:
		return binaryWrapper(v), nil
	case time.Time:
		return v.UTC().Format(dateLayout), nil
	case Set:
		return canonicalizeSet(v)
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return canonicalizeValue(rv.Elem())
	case reflect.Map:
		return canonicalizeMap(rv)
	case reflect.Struct:
		return canonicalizeStruct(rv)
	case reflect.Slice, reflect.Array:
		return canonicalizeSlice(rv)
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, engineerr.New(engineerr.KindInput, "canon: value of kind %s cannot be canonicalized", rv.Kind())
	default:
		return nil, engineerr.New(engineerr.KindInput, "canon: unsupported kind %s", rv.Kind())
	}
}

func binaryWrapper(b []byte) map[string]interface{} {
	return map[string]interface{}{
		"__type": "Binary",
		"data":   base64.StdEncoding.EncodeToString(b),
	}
}

func canonicalizeSet(s Set) (interface{}, error) {
	elems := make([]interface{}, 0, len(s))
	for _, e := range s {
		cv, err := canonicalizeValue(reflect.ValueOf(e))
		if err != nil {
			return nil, err
		}
		elems = append(elems, cv)
	}
	keyed := make([]string, len(elems))
	for i, e := range elems {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		keyed[i] = string(b)
	}
	idx := make([]int, len(elems))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return keyed[idx[i]] < keyed[idx[j]] })
	out := make([]interface{}, len(elems))
	for i, j := range idx {
		out[i] = elems[j]
	}
	return out, nil
}

func canonicalizeSlice(rv reflect.Value) (interface{}, error) {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return nil, nil
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		cv, err := canonicalizeValue(rv.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = cv
	}
	return out, nil
}

func canonicalizeMap(rv reflect.Value) (interface{}, error) {
	if rv.IsNil() {
		return nil, nil
	}
	m := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprintf("%v", iter.Key().Interface())
		cv, err := canonicalizeValue(iter.Value())
		if err != nil {
			return nil, err
		}
		m[k] = cv
	}
	return orderedMap(m), nil
}

func canonicalizeStruct(rv reflect.Value) (interface{}, error) {
	t := rv.Type()
	m := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		name, omitempty, skip := jsonFieldName(f)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if omitempty && isEmptyValue(fv) {
			continue
		}
		cv, err := canonicalizeValue(fv)
		if err != nil {
			return nil, err
		}
		if omitempty && cv == nil {
			continue
		}
		m[name] = cv
	}
	return orderedMap(m), nil
}

func jsonFieldName(f reflect.StructField) (name string, omitempty bool, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	if tag == "" {
		return f.Name, false, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// orderedMap marshals a map[string]interface{} with keys sorted
// lexicographically in byte order. Standard encoding/json already sorts map[string]X keys this
// way, so this type mostly documents the invariant; it also lets empty maps
// marshal to "{}" rather than "null".
type orderedMap map[string]interface{}

func (m orderedMap) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
