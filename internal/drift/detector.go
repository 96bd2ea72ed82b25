package drift

import (
	"context"
	"fmt"

	"github.com/wI2L/jsondiff"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/clock"
	"github.com/provgraph/engine/internal/model"
)

// severityWeight assigns the similarity weighting:
// {critical:1.0, major:0.5, minor:0.2, info:0.05}.
func severityWeight(s model.Severity) float64 {
	switch s {
	case model.SeverityCritical:
		return 1.0
	case model.SeverityMajor:
		return 0.5
	case model.SeverityMinor:
		return 0.2
	default:
		return 0.05
	}
}

// Detector runs the drift comparison pipeline.
type Detector struct {
	cache *FingerprintCache
	clock clock.Clock
}

// Options configures a Detector.
type Options struct {
	CacheCapacity int
	Clock         clock.Clock // defaults to clock.System{}
}

// NewDetector constructs a Detector with a bounded fingerprint cache.
func NewDetector(opts Options) (*Detector, error) {
	cache, err := NewFingerprintCache(opts.CacheCapacity)
	if err != nil {
		return nil, err
	}
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Detector{cache: cache, clock: c}, nil
}

// Compare runs the full comparison: fingerprint both sides, classify
// differences, compute similarity/drift score, and attach recommendations.
func (d *Detector) Compare(_ context.Context, detectionID string, expected, actual Input) (result model.DriftResult, err error) {
	started := d.clock.Now()
	result = model.DriftResult{
		DetectionID: detectionID,
		Timestamp:   started,
	}
	defer func() { result.ProcessingTime = d.clock.Now().Sub(started) }()

	if expected.IsMissing() && actual.IsMissing() {
		result.Similarity = 1.0
		result.Recommendations = []model.Recommendation{identicalRecommendation()}
		return result, nil
	}
	if actual.IsMissing() {
		result.HasDrift = true
		result.Similarity = 0
		result.DriftScore = 1
		result.DriftTypes.Content = true
		result.Differences = []model.Difference{{
			Type:        "actual-missing",
			Severity:    model.SeverityCritical,
			Description: "expected artifact is absent from actual output",
		}}
		result.Recommendations = []model.Recommendation{criticalRecommendation()}
		return result, nil
	}
	if expected.IsMissing() {
		result.HasDrift = true
		result.Similarity = 0
		result.DriftScore = 1
		result.DriftTypes.Content = true
		result.Differences = []model.Difference{{
			Type:        "expected-missing",
			Severity:    model.SeverityCritical,
			Description: "actual artifact has no corresponding expected entry",
		}}
		result.Recommendations = []model.Recommendation{criticalRecommendation()}
		return result, nil
	}

	expFP, err := d.cache.Fingerprint(expected)
	if err != nil {
		return model.DriftResult{}, err
	}
	actFP, err := d.cache.Fingerprint(actual)
	if err != nil {
		return model.DriftResult{}, err
	}

	var diffs []model.Difference

	contentChanged := expFP.ContentHash != actFP.ContentHash
	semanticChanged := expFP.SemanticHash != actFP.SemanticHash

	if expFP.Size != actFP.Size {
		result.DriftTypes.Size = true
		diffs = append(diffs, model.Difference{
			Type:        "size-changed",
			Severity:    model.SeverityMinor,
			Description: fmt.Sprintf("size changed from %d to %d bytes", expFP.Size, actFP.Size),
		})
	}

	switch {
	case !contentChanged:
		// identical bytes; nothing further to report.
	case contentChanged && !semanticChanged:
		result.DriftTypes.Content = true
		diffs = append(diffs, model.Difference{
			Type:        "content-changed",
			Severity:    model.SeverityMinor,
			Description: "byte content changed but semantic content is equivalent",
		})
	case semanticChanged:
		result.DriftTypes.Content = true
		result.DriftTypes.Semantic = true
		sev := model.SeverityMajor
		if expFP.ContentType == ContentTypeCode || expFP.ContentType == ContentTypeRDF {
			sev = model.SeverityCritical
		}
		desc, structural := semanticDescription(expFP, actFP, expected, actual)
		if structural {
			result.DriftTypes.Structure = true
		}
		diffs = append(diffs, model.Difference{
			Type:        "semantic-change",
			Severity:    sev,
			Description: desc,
		})
	}

	result.Differences = diffs
	result.HasDrift = len(diffs) > 0

	// Weighted mean over the five drift dimensions (content, semantic,
	// structure, metadata, size), not over the number of diffs actually
	// triggered: a single minor diff (e.g. whitespace-only JSON formatting)
	// should leave similarity comfortably high, not drop it to exactly
	// 1-weight.
	const dimensions = 5
	var weighted float64
	for _, diff := range diffs {
		weighted += severityWeight(diff.Severity)
	}
	weighted /= dimensions
	similarity := 1 - weighted
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	result.Similarity = similarity
	result.DriftScore = clampUnit(1 - similarity)
	result.Recommendations = recommendationsFor(result)
	return result, nil
}

func hasCriticalDiff(diffs []model.Difference) bool {
	for _, d := range diffs {
		if d.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// semanticDescription produces a human-readable description of a semantic
// change, using a JSON Patch (RFC 6902) diff for JSON content so the
// description names the changed paths instead of just the hashes.
func semanticDescription(expFP, actFP Fingerprint, expected, actual Input) (string, bool) {
	if expFP.ContentType != ContentTypeJSON {
		return fmt.Sprintf("%s content diverged semantically", expFP.ContentType), false
	}

	expBytes, errExp := expected.bytesOf()
	actBytes, errAct := actual.bytesOf()
	if errExp != nil || errAct != nil {
		return "JSON content diverged semantically", false
	}

	patch, err := jsondiff.CompareJSON(expBytes, actBytes)
	if err != nil || len(patch) == 0 {
		return "JSON content diverged semantically", false
	}
	return describePatch(patch), true
}

func describePatch(patch jsondiff.Patch) string {
	var added, removed, replaced int
	for _, op := range patch {
		switch op.Type {
		case jsondiff.OperationAdd:
			added++
		case jsondiff.OperationRemove:
			removed++
		case jsondiff.OperationReplace:
			replaced++
		}
	}
	return fmt.Sprintf("JSON structure changed: %d field(s) added, %d removed, %d replaced", added, removed, replaced)
}

func identicalRecommendation() model.Recommendation {
	return model.Recommendation{Type: "no-action", Severity: "info", Message: "no action: expected and actual are identical"}
}

func criticalRecommendation() model.Recommendation {
	return model.Recommendation{Type: "critical-drift", Severity: "critical", Message: "review and potentially revert: artifact presence diverged"}
}

// recommendationsFor applies the rule-based recommendation table.
func recommendationsFor(r model.DriftResult) []model.Recommendation {
	if !r.HasDrift {
		return []model.Recommendation{identicalRecommendation()}
	}
	if r.DriftTypes.Semantic {
		if hasCriticalDiff(r.Differences) {
			return []model.Recommendation{{
				Type:     "semantic-drift",
				Severity: "critical",
				Message:  "review and potentially revert: semantic content diverged",
			}}
		}
		return []model.Recommendation{{
			Type:     "semantic-drift",
			Severity: "medium",
			Message:  "semantic content diverged; review before accepting",
		}}
	}
	return []model.Recommendation{{
		Type:     "content-drift",
		Severity: "medium",
		Message:  "confirm whitespace-only or cosmetic change",
	}}
}

// Hash is a small convenience re-export so callers don't need to import
// canon directly just to hash a comparison's raw bytes (e.g. for logging).
func Hash(b []byte) string { return canon.HashBytes(b) }
