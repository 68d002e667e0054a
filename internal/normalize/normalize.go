// Package normalize turns free-form BOM text into keywords, size variants and
// trade synonyms for keyword-level catalog lookup.
package normalize

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/cloo-solutions/bomsearch/internal/domain"
	"github.com/cloo-solutions/bomsearch/internal/units"
)

//go:embed synonyms.yaml
var defaultSynonyms []byte

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "be": {}, "it": {}, "this": {},
	"that": {}, "per": {}, "each": {}, "ea": {}, "qty": {}, "pcs": {}, "pc": {}, "type": {}, "x": {},
}

// Typographic marks and vulgar fractions are rewritten before NFKC, which
// would otherwise fold "7½" into "71⁄2" and a double prime into two feet marks.
var punctuation = strings.NewReplacer(
	"″", `"`, "“", `"`, "”", `"`, "′", "'", "’", "'",
	"½", " 1/2", "¼", " 1/4", "¾", " 3/4", "⅛", " 1/8", "⅜", " 3/8", "⅝", " 5/8", "⅞", " 7/8",
)

var (
	tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:\.\d+)?`)
	gridPattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*[x×]\s*(\d+(?:\.\d+)?)(?:\s*[x×]\s*(\d+(?:\.\d+)?))?`)
)

type synonymFile struct {
	Groups [][]string `yaml:"groups"`
}

// Normalizer is safe for concurrent use once constructed.
type Normalizer struct {
	groups [][]string
}

// New returns a Normalizer loaded with the built-in synonym table.
func New() (*Normalizer, error) {
	groups, err := ParseSynonyms(defaultSynonyms)
	if err != nil {
		return nil, fmt.Errorf("failed to load built-in synonyms: %w", err)
	}
	return NewWithSynonyms(groups), nil
}

// NewWithSynonyms returns a Normalizer using the given synonym groups.
func NewWithSynonyms(groups [][]string) *Normalizer {
	clean := make([][]string, 0, len(groups))
	for _, g := range groups {
		var terms []string
		for _, t := range g {
			if t = canonical(t); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) > 1 {
			clean = append(clean, terms)
		}
	}
	return &Normalizer{groups: clean}
}

// ParseSynonyms decodes a YAML synonym table.
func ParseSynonyms(data []byte) ([][]string, error) {
	var f synonymFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.Groups, nil
}

// Normalize produces the keyword-level view of text.
func (n *Normalizer) Normalize(text string) domain.NormalizedItem {
	text = strings.Join(strings.Fields(norm.NFKC.String(punctuation.Replace(text))), " ")
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	variants := sizeVariants(text)
	patterns := make([]string, 0, len(variants))
	for _, v := range variants {
		patterns = append(patterns, "%"+v+"%")
	}

	keywords := keywords(tokens)
	return domain.NormalizedItem{
		Text:         text,
		Keywords:     keywords,
		SizeVariants: variants,
		SizePatterns: patterns,
		Synonyms:     n.synonyms(tokens, keywords),
	}
}

func keywords(tokens []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, t := range tokens {
		if len(t) < 2 || startsWithDigit(t) {
			continue
		}
		if _, ok := stopwords[t]; ok {
			continue
		}
		if _, ok := units.NormalizeUnit(t); ok {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// synonyms returns every term of each group that matched the text, minus the
// terms already present as keywords.
func (n *Normalizer) synonyms(tokens, keywords []string) []string {
	phrase := " " + strings.Join(tokens, " ") + " "
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		seen[k] = struct{}{}
	}

	var out []string
	for _, group := range n.groups {
		matched := false
		for _, term := range group {
			if strings.Contains(phrase, " "+term+" ") {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, term := range group {
			if _, ok := seen[term]; ok || strings.Contains(phrase, " "+term+" ") {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	return out
}

func sizeVariants(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(v string) {
		if _, ok := seen[v]; ok || v == "" {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, d := range units.FindDimensions(text) {
		num := units.FormatNumber(d.Value)
		add(num + " " + d.Unit)
		add(num + d.Unit)
		switch d.Unit {
		case units.Inch:
			add(num + `"`)
			add(num + " inch")
			add(num + "-inch")
		case units.Foot:
			add(num + "'")
			add(num + " feet")
		}
		for _, conv := range units.FormatMultiUnit("", d.Unit, d.Value)[1:] {
			add(conv)
			add(strings.ReplaceAll(conv, " ", ""))
		}
	}

	for _, m := range gridPattern.FindAllStringSubmatch(text, -1) {
		parts := []string{m[1], m[2]}
		if m[3] != "" {
			parts = append(parts, m[3])
		}
		add(strings.Join(parts, "x"))
		add(strings.Join(parts, " x "))
	}
	return out
}

func canonical(s string) string {
	return strings.Join(tokenPattern.FindAllString(strings.ToLower(norm.NFKC.String(s)), -1), " ")
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
