// Package drift implements the drift detector: semantic-aware
// comparison of an expected artifact against an actual one, producing a
// scored model.DriftResult. Comparison covers arbitrary code/JSON/RDF/text
// artifacts.
package drift

import (
	"encoding/json"

	"github.com/provgraph/engine/internal/engineerr"
)

// Input is the tagged variant every expected/actual value normalizes to
// at the boundary: a string, a byte buffer, an arbitrary structured
// value, or a file-like {path, content}.
type Input struct {
	kind       inputKind
	text       string
	bytes      []byte
	structured interface{}
	path       string
}

type inputKind int

const (
	kindText inputKind = iota
	kindBytes
	kindStructured
	kindFile
	kindMissing
)

// Text wraps a plain string input.
func Text(s string) Input { return Input{kind: kindText, text: s} }

// Bytes wraps a raw byte-buffer input.
func Bytes(b []byte) Input { return Input{kind: kindBytes, bytes: b} }

// Structured wraps an arbitrary JSON-marshalable value (e.g. a decoded
// config object) as an input.
func Structured(v interface{}) Input { return Input{kind: kindStructured, structured: v} }

// File wraps a file-like input: its path (for extension-based content-type
// detection) plus its already-read content.
func File(path string, content []byte) Input { return Input{kind: kindFile, path: path, bytes: content} }

// Missing represents an absent side of a comparison.
func Missing() Input { return Input{kind: kindMissing} }

// IsMissing reports whether in represents an absent input.
func (in Input) IsMissing() bool { return in.kind == kindMissing }

// Path returns the file path associated with a File input, or "".
func (in Input) Path() string { return in.path }

// bytesOf normalizes any variant to its raw byte representation for hashing
// and content-type sniffing.
func (in Input) bytesOf() ([]byte, error) {
	switch in.kind {
	case kindText:
		return []byte(in.text), nil
	case kindBytes, kindFile:
		return in.bytes, nil
	case kindStructured:
		b, err := json.Marshal(in.structured)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindInput, err)
		}
		return b, nil
	case kindMissing:
		return nil, nil
	default:
		return nil, engineerr.New(engineerr.KindInput, "drift: unrecognized input variant")
	}
}
