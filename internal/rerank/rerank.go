// Package rerank blends vector similarity with structured spec agreement.
package rerank

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/units"
)

const (
	DefaultAlpha = 0.7
	DefaultBeta  = 0.3
)

// Config controls the blend between similarity and spec score.
type Config struct {
	Enabled bool
	Alpha   float64
	Beta    float64
}

// DefaultConfig returns an enabled config with the default weights.
func DefaultConfig() Config {
	return Config{Enabled: true, Alpha: DefaultAlpha, Beta: DefaultBeta}
}

// ReRanker scores semantic matches against the specs extracted from a query.
type ReRanker struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a ReRanker.
func New(cfg Config, logger *zap.Logger) *ReRanker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReRanker{cfg: cfg, logger: logger}
}

// Enabled reports whether re-ranking will run.
func (r *ReRanker) Enabled() bool {
	return r != nil && r.cfg.Enabled
}

type querySpec struct {
	key         string
	canonical   string
	raw         string
	mm          float64
	dimensional bool
}

// ReRank sets FinalScore on every match and returns them sorted by it,
// highest first. Matches are returned unchanged when re-ranking is disabled
// or the query carries no specs.
func (r *ReRanker) ReRank(matches []domain.SemanticProductMatch, querySpecs map[string]string) []domain.SemanticProductMatch {
	if !r.Enabled() || len(querySpecs) == 0 || len(matches) == 0 {
		return matches
	}

	specs := normalizeQuerySpecs(querySpecs)
	if len(specs) == 0 {
		return matches
	}

	out := make([]domain.SemanticProductMatch, len(matches))
	copy(out, matches)
	for i := range out {
		specScore := scorePayload(specs, out[i].SpecPayload)
		final := r.cfg.Alpha*out[i].Similarity + r.cfg.Beta*specScore
		out[i].FinalScore = &final
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].FinalScore > *out[j].FinalScore
	})

	r.logger.Debug("re-ranked matches",
		zap.Int("matches", len(out)),
		zap.Int("query_specs", len(specs)),
	)
	return out
}

func normalizeQuerySpecs(raw map[string]string) []querySpec {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	specs := make([]querySpec, 0, len(keys))
	for _, k := range keys {
		key := strings.ToLower(strings.TrimSpace(k))
		value := strings.TrimSpace(raw[k])
		if key == "" || value == "" {
			continue
		}
		spec := querySpec{key: key, canonical: canonicalKey(key), raw: value}
		if !units.IsNonDimensional(key) && !units.IsNonDimensional(spec.canonical) {
			if v, u, ok := units.ParseDimension(value); ok {
				spec.mm, _ = units.ToCanonical(v, u)
				spec.dimensional = true
			} else if _, u, ok := units.DetectUnit(key); ok {
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					spec.mm, _ = units.ToCanonical(v, u)
					spec.dimensional = true
				}
			}
		}
		specs = append(specs, spec)
	}
	return specs
}

// scorePayload returns the mean agreement between the query specs and a
// candidate spec payload, in [0,1]. Query keys with no matching candidate key
// are skipped; with nothing to evaluate the score is 0.
func scorePayload(specs []querySpec, payload json.RawMessage) float64 {
	if len(payload) == 0 {
		return 0
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil || len(decoded) == 0 {
		return 0
	}
	candidate := flatten(decoded)

	candidateKeys := make([]string, 0, len(candidate))
	for k := range candidate {
		candidateKeys = append(candidateKeys, k)
	}
	sort.Strings(candidateKeys)

	total, evaluated := 0.0, 0
	for _, spec := range specs {
		ck, ok := matchKey(spec, candidateKeys)
		if !ok {
			continue
		}
		total += scoreValue(spec, ck, candidate[ck])
		evaluated++
	}
	if evaluated == 0 {
		return 0
	}
	return total / float64(evaluated)
}

// flatten lifts one level of nested objects into the top level. Top-level
// keys win on collision.
func flatten(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, v := range m {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for nk, nv := range nested {
			key := strings.ToLower(strings.TrimSpace(nk))
			if _, exists := out[key]; !exists {
				out[key] = nv
			}
		}
	}
	return out
}

func matchKey(spec querySpec, candidateKeys []string) (string, bool) {
	for _, ck := range candidateKeys {
		if ck == spec.key {
			return ck, true
		}
	}
	for _, ck := range candidateKeys {
		if canonicalKey(ck) == spec.canonical {
			return ck, true
		}
	}
	return "", false
}

// canonicalKey strips unit suffixes, an "_options" suffix and an
// "available_" prefix (singularising what remains).
func canonicalKey(key string) string {
	key = stripUnitSuffix(key)
	key = stripUnitSuffix(strings.TrimSuffix(key, "_options"))
	if rest, ok := strings.CutPrefix(key, "available_"); ok && rest != "" {
		key = singular(rest)
	}
	return key
}

func stripUnitSuffix(key string) string {
	if base, ok := suffixUnit(key); ok {
		return base
	}
	return key
}

// suffixUnit reports the unit spelled as a key suffix, ignoring units that
// are only implied by the key name.
func suffixUnit(key string) (string, bool) {
	base, _, ok := units.DetectUnit(key)
	if !ok || base == key {
		return key, false
	}
	return base, true
}

func singular(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 3:
		return strings.TrimSuffix(word, "ies") + "y"
	case strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"),
		strings.HasSuffix(word, "xes"), strings.HasSuffix(word, "sses"):
		return strings.TrimSuffix(word, "es")
	case strings.HasSuffix(word, "ss"):
		return word
	case strings.HasSuffix(word, "s") && len(word) > 1:
		return strings.TrimSuffix(word, "s")
	}
	return word
}

func scoreValue(spec querySpec, candidateKey string, value any) float64 {
	values := asList(value)
	if spec.dimensional {
		if mms := candidateMillimeters(candidateKey, values); len(mms) > 0 {
			return dimensionalScore(spec.mm, mms)
		}
	}
	return categoricalScore(spec.raw, values)
}

func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// keyUnit reports the unit a candidate key carries, either spelled as a
// suffix ("width_mm", "width_in_options") or implied by its base name
// ("width", "available_widths").
func keyUnit(key string) (unit string, suffixed, ok bool) {
	trimmed := strings.TrimSuffix(key, "_options")
	if base, u, found := units.DetectUnit(trimmed); found && base != trimmed {
		return u, true, true
	}
	if _, u, found := units.DetectUnit(canonicalKey(key)); found {
		return u, false, true
	}
	return "", false, false
}

// candidateMillimeters converts candidate values to millimeters. A unit
// suffix on the key wins, then unit text in the value, then the unit implied
// by the key name. Bare numbers under unrecognised keys are millimeters.
func candidateMillimeters(key string, values []any) []float64 {
	implied, suffixed, known := keyUnit(key)

	var out []float64
	for _, v := range values {
		var num float64
		var unit string
		switch val := v.(type) {
		case float64:
			num = val
		case string:
			if n, u, ok := units.ParseDimension(val); ok {
				num, unit = n, u
			} else if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
				num = n
			} else {
				continue
			}
		default:
			continue
		}
		switch {
		case suffixed:
			unit = implied
		case unit == "" && known:
			unit = implied
		case unit == "":
			unit = units.Millimeter
		}
		if mm, ok := units.ToCanonical(num, unit); ok {
			out = append(out, mm)
		}
	}
	return out
}

func dimensionalScore(query float64, candidates []float64) float64 {
	nearest := candidates[0]
	for _, c := range candidates[1:] {
		if math.Abs(c-query) < math.Abs(nearest-query) {
			nearest = c
		}
	}
	if query == 0 {
		if nearest == 0 {
			return 1
		}
		return 0
	}
	return clamp(1 - math.Abs(query-nearest)/math.Abs(query))
}

func categoricalScore(query string, values []any) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	qNum, qErr := strconv.ParseFloat(q, 64)
	for _, v := range values {
		switch val := v.(type) {
		case string:
			s := strings.ToLower(strings.TrimSpace(val))
			if s == q {
				return 1
			}
			if n, err := strconv.ParseFloat(s, 64); err == nil && qErr == nil && n == qNum {
				return 1
			}
		case float64:
			if qErr == nil && val == qNum {
				return 1
			}
		case bool:
			if strconv.FormatBool(val) == q {
				return 1
			}
		}
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
