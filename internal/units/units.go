// Package units converts dimensional values between imperial and metric
// units. Millimeters are the canonical unit.
package units

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	Millimeter = "mm"
	Centimeter = "cm"
	Meter      = "m"
	Inch       = "in"
	Foot       = "ft"
)

var mmPerUnit = map[string]float64{
	Millimeter: 1,
	Centimeter: 10,
	Meter:      1000,
	Inch:       25.4,
	Foot:       304.8,
}

var unitAliases = map[string]string{
	"mm":          Millimeter,
	"millimeter":  Millimeter,
	"millimeters": Millimeter,
	"millimetre":  Millimeter,
	"millimetres": Millimeter,
	"cm":          Centimeter,
	"centimeter":  Centimeter,
	"centimeters": Centimeter,
	"centimetre":  Centimeter,
	"centimetres": Centimeter,
	"m":           Meter,
	"meter":       Meter,
	"meters":      Meter,
	"metre":       Meter,
	"metres":      Meter,
	"in":          Inch,
	"inch":        Inch,
	"inches":      Inch,
	`"`:           Inch,
	"″":           Inch,
	"ft":          Foot,
	"foot":        Foot,
	"feet":        Foot,
	"'":           Foot,
	"′":           Foot,
}

// keySuffixes is ordered so that longer suffixes win over their prefixes.
var keySuffixes = []struct {
	suffix string
	unit   string
}{
	{"_inches", Inch},
	{"_inch", Inch},
	{"_feet", Foot},
	{"_mm", Millimeter},
	{"_cm", Centimeter},
	{"_in", Inch},
	{"_ft", Foot},
	{"_m", Meter},
}

// Unit-less keys whose values are conventionally given in inches.
var impliedUnits = map[string]string{
	"width":     Inch,
	"height":    Inch,
	"length":    Inch,
	"depth":     Inch,
	"thickness": Inch,
	"diameter":  Inch,
}

// Performance metrics that look dimensional but are not.
var nonDimensionalKeys = map[string]struct{}{
	"u_factor":             {},
	"ufactor":              {},
	"u_value":              {},
	"shgc":                 {},
	"stc":                  {},
	"oitc":                 {},
	"vt":                   {},
	"vlt":                  {},
	"r_value":              {},
	"psi":                  {},
	"compressive_strength": {},
	"fire_rating":          {},
	"air_infiltration":     {},
	"water_resistance":     {},
	"design_pressure":      {},
	"cr":                   {},
}

var dimensionPattern = regexp.MustCompile(
	`(?i)(\d+\s+\d+/\d+|\d+/\d+|\d*\.?\d+)\s*(millimet(?:er|re)s?|mm|centimet(?:er|re)s?|cm|met(?:er|re)s?|inch(?:es)?|in|feet|foot|ft|m|"|'|″|′)(?:[^a-z]|$)`,
)

// NormalizeUnit maps a unit spelling to its canonical abbreviation.
func NormalizeUnit(unit string) (string, bool) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(unit))]
	return u, ok
}

// IsImperial reports whether unit is inches or feet.
func IsImperial(unit string) bool {
	return unit == Inch || unit == Foot
}

// IsNonDimensional reports whether key names a performance metric that must
// never be treated as a length.
func IsNonDimensional(key string) bool {
	_, ok := nonDimensionalKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// DetectUnit recognises the unit encoded in a spec key, either as a suffix
// ("width_mm") or implied by the key itself ("width" is inches).
func DetectUnit(specKey string) (baseKey string, unit string, ok bool) {
	key := strings.ToLower(strings.TrimSpace(specKey))
	if key == "" || IsNonDimensional(key) {
		return "", "", false
	}
	for _, s := range keySuffixes {
		if len(key) > len(s.suffix) && strings.HasSuffix(key, s.suffix) {
			base := strings.TrimSuffix(key, s.suffix)
			if IsNonDimensional(base) {
				return "", "", false
			}
			return base, s.unit, true
		}
	}
	if u, found := impliedUnits[key]; found {
		return key, u, true
	}
	return "", "", false
}

// ToCanonical converts value in unit to millimeters.
func ToCanonical(value float64, unit string) (float64, bool) {
	u, ok := NormalizeUnit(unit)
	if !ok {
		return 0, false
	}
	return value * mmPerUnit[u], true
}

// FromCanonical converts millimeters to unit.
func FromCanonical(mm float64, unit string) (float64, bool) {
	u, ok := NormalizeUnit(unit)
	if !ok {
		return 0, false
	}
	return mm / mmPerUnit[u], true
}

// ParseDimension extracts the first number-plus-unit token from s.
// Fractions ("3/4 in") and mixed numbers ("7 5/8 in") are supported.
func ParseDimension(s string) (value float64, unit string, ok bool) {
	m := dimensionPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	v, ok := parseNumber(m[1])
	if !ok {
		return 0, "", false
	}
	u, ok := NormalizeUnit(m[2])
	if !ok {
		return 0, "", false
	}
	return v, u, true
}

// Dimension is a parsed value with its canonical unit.
type Dimension struct {
	Value float64
	Unit  string
}

// Millimeters returns the dimension in canonical units.
func (d Dimension) Millimeters() float64 {
	return d.Value * mmPerUnit[d.Unit]
}

// FindDimensions returns every number-plus-unit token in s, in order.
func FindDimensions(s string) []Dimension {
	var out []Dimension
	for _, m := range dimensionPattern.FindAllStringSubmatch(s, -1) {
		v, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		u, ok := NormalizeUnit(m[2])
		if !ok {
			continue
		}
		out = append(out, Dimension{Value: v, Unit: u})
	}
	return out
}

// FormatMultiUnit renders value in its native unit followed by the
// equivalent in the other system. baseKey, when set, prefixes each string.
func FormatMultiUnit(baseKey, unit string, value float64) []string {
	u, ok := NormalizeUnit(unit)
	if !ok {
		return []string{label(baseKey) + FormatNumber(value) + " " + unit}
	}

	out := []string{label(baseKey) + FormatNumber(value) + " " + u}
	mm := value * mmPerUnit[u]
	switch u {
	case Foot:
		out = append(out,
			label(baseKey)+FormatNumber(mm/mmPerUnit[Inch])+" "+Inch,
			label(baseKey)+FormatNumber(mm)+" "+Millimeter,
		)
	case Inch:
		out = append(out, label(baseKey)+FormatNumber(mm)+" "+Millimeter)
	case Millimeter:
		out = append(out, label(baseKey)+FormatNumber(mm/mmPerUnit[Inch])+" "+Inch)
	default:
		out = append(out,
			label(baseKey)+FormatNumber(mm)+" "+Millimeter,
			label(baseKey)+FormatNumber(mm/mmPerUnit[Inch])+" "+Inch,
		)
	}
	return out
}

// FormatNumber renders v with at most two decimals and no trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func label(baseKey string) string {
	if baseKey == "" {
		return ""
	}
	return strings.ReplaceAll(baseKey, "_", " ") + " "
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	whole := 0.0
	if fields := strings.Fields(s); len(fields) == 2 {
		w, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, false
		}
		whole = w
		s = fields[1]
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d == 0 {
			return 0, false
		}
		return whole + n/d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return whole + v, true
}
