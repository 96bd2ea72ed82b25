package drift

import (
	"path/filepath"
	"strings"
)

// ContentType is the sniffed or declared kind of an Input.
type ContentType string

const (
	ContentTypeJSON ContentType = "json"
	ContentTypeRDF  ContentType = "rdf"
	ContentTypeCode ContentType = "code"
	ContentTypeText ContentType = "text"
)

var codeExtensions = map[string]bool{
	".go": true, ".ts": true, ".js": true, ".py": true, ".java": true,
	".rs": true, ".c": true, ".h": true, ".cpp": true, ".cs": true,
}

// DetectContentType resolves a content type from the file extension
// first, then content sniffing. path may be empty, in which case only
// sniffing applies.
func DetectContentType(path string, b []byte) ContentType {
	if ct, ok := detectByExtension(path); ok {
		return ct
	}
	return sniff(b)
}

func detectByExtension(path string) (ContentType, bool) {
	if path == "" {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ContentTypeJSON, true
	case ".ttl", ".turtle", ".n3":
		return ContentTypeRDF, true
	case ".txt", ".md":
		return ContentTypeText, true
	}
	if codeExtensions[ext] {
		return ContentTypeCode, true
	}
	return "", false
}

// sniff implements the content-sniffing fallback: brace counts for JSON,
// "@prefix"/"<...>" for Turtle, otherwise generic text.
func sniff(b []byte) ContentType {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return ContentTypeText
	}

	if (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) {
		if balancedBraces(s) {
			return ContentTypeJSON
		}
	}

	if strings.Contains(s, "@prefix") || strings.Contains(s, "@base") ||
		(strings.Contains(s, "<") && strings.Contains(s, ">") && strings.Contains(s, " a ")) {
		return ContentTypeRDF
	}

	return ContentTypeText
}

func balancedBraces(s string) bool {
	depth := 0
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && !inString
}
