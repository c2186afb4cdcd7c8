package engine

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// CategoryThresholds holds the constants that drive interpretation of one
// physiological category
type CategoryThresholds struct {
	NormalRange     domain.NormalRange
	ConcerningSlope float64
	CriticalSlope   float64
}

// ThresholdTable maps parameter categories and known analytes onto their
// interpretation constants. The zero value is not usable; call NewThresholdTable.
type ThresholdTable struct {
	categories map[domain.ParameterType]CategoryThresholds
	analytes   map[string]domain.NormalRange
	members    map[string]domain.ParameterType
}

func bounds(lo, hi float64) domain.NormalRange {
	return domain.NormalRange{Min: &lo, Max: &hi}
}

func upperBound(hi float64) domain.NormalRange {
	return domain.NormalRange{Max: &hi}
}

func lowerBound(lo float64) domain.NormalRange {
	return domain.NormalRange{Min: &lo}
}

// parameterAliases folds common spellings onto canonical analyte names
var parameterAliases = map[string]string{
	"fasting_glucose":            "glucose",
	"blood_glucose":              "glucose",
	"blood_sugar":                "glucose",
	"fbs":                        "glucose",
	"fasting_blood_sugar":        "glucose",
	"a1c":                        "hba1c",
	"hb_a1c":                     "hba1c",
	"hemoglobin_a1c":             "hba1c",
	"glycated_hemoglobin":        "hba1c",
	"total_cholesterol":          "cholesterol",
	"cholesterol_total":          "cholesterol",
	"hdl_cholesterol":            "hdl",
	"hdl_c":                      "hdl",
	"ldl_cholesterol":            "ldl",
	"ldl_c":                      "ldl",
	"tg":                         "triglycerides",
	"triglyceride":               "triglycerides",
	"serum_creatinine":           "creatinine",
	"blood_urea_nitrogen":        "bun",
	"urea_nitrogen":              "bun",
	"e_gfr":                      "egfr",
	"gfr":                        "egfr",
	"sgpt":                       "alt",
	"alanine_aminotransferase":   "alt",
	"sgot":                       "ast",
	"aspartate_aminotransferase": "ast",
	"total_bilirubin":            "bilirubin",
	"bilirubin_total":            "bilirubin",
	"hgb":                        "hemoglobin",
	"hb":                         "hemoglobin",
	"hct":                        "hematocrit",
	"ft4":                        "free_t4",
	"free_thyroxine":             "free_t4",
	"systolic":                   "systolic_bp",
	"systolic_blood_pressure":    "systolic_bp",
	"sbp":                        "systolic_bp",
	"diastolic":                  "diastolic_bp",
	"diastolic_blood_pressure":   "diastolic_bp",
	"dbp":                        "diastolic_bp",
}

// CanonicalParameter normalizes a raw field name: camelCase is split, the name
// is lowercased, spaces and hyphens become underscores and known aliases are
// folded.
func CanonicalParameter(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' && i > 0 {
			prev := runes[i-1]
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte('_')
			}
		}
		switch r {
		case ' ', '-', '.', '/':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	canonical := strings.ToLower(b.String())
	for strings.Contains(canonical, "__") {
		canonical = strings.ReplaceAll(canonical, "__", "_")
	}
	canonical = strings.Trim(canonical, "_")

	if alias, ok := parameterAliases[canonical]; ok {
		return alias
	}
	return canonical
}

// NewThresholdTable returns the built-in threshold table
func NewThresholdTable() *ThresholdTable {
	t := &ThresholdTable{
		categories: map[domain.ParameterType]CategoryThresholds{
			domain.GlucoseMetabolism: {NormalRange: bounds(70, 100), ConcerningSlope: 5, CriticalSlope: 10},
			domain.LipidMetabolism:   {NormalRange: bounds(0, 200), ConcerningSlope: 10, CriticalSlope: 20},
			domain.KidneyFunction:    {NormalRange: bounds(0.6, 1.2), ConcerningSlope: 0.1, CriticalSlope: 0.3},
			domain.LiverFunction:     {NormalRange: bounds(7, 56), ConcerningSlope: 5, CriticalSlope: 15},
			domain.Hematology:        {NormalRange: bounds(12, 17.5), ConcerningSlope: 0.5, CriticalSlope: 1.5},
			domain.ThyroidFunction:   {NormalRange: bounds(0.4, 4.0), ConcerningSlope: 0.3, CriticalSlope: 1.0},
			domain.DefaultCategory:   {ConcerningSlope: 1, CriticalSlope: 5},
		},
		analytes: map[string]domain.NormalRange{
			"glucose":       bounds(70, 100),
			"hba1c":         bounds(4.0, 5.7),
			"insulin":       bounds(2, 25),
			"cholesterol":   upperBound(200),
			"ldl":           upperBound(100),
			"hdl":           lowerBound(40),
			"triglycerides": upperBound(150),
			"creatinine":    bounds(0.6, 1.2),
			"bun":           bounds(7, 20),
			"egfr":          lowerBound(90),
			"uric_acid":     bounds(3.5, 7.2),
			"alt":           bounds(7, 56),
			"ast":           bounds(10, 40),
			"alp":           bounds(44, 147),
			"bilirubin":     bounds(0.1, 1.2),
			"albumin":       bounds(3.5, 5.0),
			"hemoglobin":    bounds(12, 17.5),
			"hematocrit":    bounds(36, 50),
			"wbc":           bounds(4.0, 11.0),
			"rbc":           bounds(4.2, 5.9),
			"platelets":     bounds(150, 450),
			"tsh":           bounds(0.4, 4.0),
			"free_t4":       bounds(0.8, 1.8),
			"t3":            bounds(80, 200),
			"systolic_bp":   bounds(90, 120),
			"diastolic_bp":  bounds(60, 80),
		},
		members: map[string]domain.ParameterType{
			"glucose":       domain.GlucoseMetabolism,
			"hba1c":         domain.GlucoseMetabolism,
			"insulin":       domain.GlucoseMetabolism,
			"cholesterol":   domain.LipidMetabolism,
			"ldl":           domain.LipidMetabolism,
			"hdl":           domain.LipidMetabolism,
			"triglycerides": domain.LipidMetabolism,
			"vldl":          domain.LipidMetabolism,
			"creatinine":    domain.KidneyFunction,
			"bun":           domain.KidneyFunction,
			"egfr":          domain.KidneyFunction,
			"uric_acid":     domain.KidneyFunction,
			"alt":           domain.LiverFunction,
			"ast":           domain.LiverFunction,
			"alp":           domain.LiverFunction,
			"ggt":           domain.LiverFunction,
			"bilirubin":     domain.LiverFunction,
			"albumin":       domain.LiverFunction,
			"hemoglobin":    domain.Hematology,
			"hematocrit":    domain.Hematology,
			"wbc":           domain.Hematology,
			"rbc":           domain.Hematology,
			"platelets":     domain.Hematology,
			"tsh":           domain.ThyroidFunction,
			"free_t4":       domain.ThyroidFunction,
			"t3":            domain.ThyroidFunction,
			"t4":            domain.ThyroidFunction,
		},
	}
	return t
}

// specimenQualifiers mark measurements taken outside blood. The built-in
// ranges are blood ranges, so such names never match an analyte by token.
var specimenQualifiers = map[string]bool{
	"urine":    true,
	"urinary":  true,
	"ur":       true,
	"csf":      true,
	"stool":    true,
	"fecal":    true,
	"saliva":   true,
	"salivary": true,
	"fluid":    true,
}

// Classify returns the physiological category of a parameter. Exact names are
// matched first, then any known analyte contained as a token of the name,
// unless another token names a non-blood specimen. Unknown names fall back
// to the default category.
func (t *ThresholdTable) Classify(parameter string) domain.ParameterType {
	name := CanonicalParameter(parameter)
	if pt, ok := t.members[name]; ok {
		return pt
	}

	tokens := strings.Split(name, "_")
	for _, tok := range tokens {
		if specimenQualifiers[tok] {
			return domain.DefaultCategory
		}
	}
	for _, known := range t.sortedMembers() {
		for _, tok := range tokens {
			if tok == known {
				return t.members[known]
			}
		}
	}
	return domain.DefaultCategory
}

// For returns the thresholds for a parameter, with the category's normal
// range refined by the analyte's own reference range when one is known
func (t *ThresholdTable) For(parameter string) (domain.ParameterType, CategoryThresholds) {
	pt := t.Classify(parameter)
	th := t.Category(pt)
	if r, ok := t.analytes[CanonicalParameter(parameter)]; ok {
		th.NormalRange = r
	}
	return pt, th
}

// Category returns the constants of a category, falling back to default
func (t *ThresholdTable) Category(pt domain.ParameterType) CategoryThresholds {
	if th, ok := t.categories[pt]; ok {
		return th
	}
	return t.categories[domain.DefaultCategory]
}

func (t *ThresholdTable) sortedMembers() []string {
	names := make([]string, 0, len(t.members))
	for name := range t.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// thresholdFile is the YAML layout of a threshold override file:
//
//	categories:
//	  glucose_metabolism:
//	    normal_min: 70
//	    normal_max: 99
//	    concerning_slope: 4
//	    critical_slope: 8
type thresholdFile struct {
	Categories map[string]struct {
		NormalMin       *float64 `yaml:"normal_min"`
		NormalMax       *float64 `yaml:"normal_max"`
		ConcerningSlope *float64 `yaml:"concerning_slope"`
		CriticalSlope   *float64 `yaml:"critical_slope"`
	} `yaml:"categories"`
	Analytes map[string]struct {
		Min *float64 `yaml:"min"`
		Max *float64 `yaml:"max"`
	} `yaml:"analytes"`
}

// LoadThresholdOverrides applies a YAML override file on top of the table.
// On error the table is left untouched.
func (t *ThresholdTable) LoadThresholdOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read threshold overrides %s: %v", domain.ErrConfiguration, path, err)
	}

	var file thresholdFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: failed to parse threshold overrides %s: %v", domain.ErrConfiguration, path, err)
	}

	categories := make(map[domain.ParameterType]CategoryThresholds, len(t.categories))
	for k, v := range t.categories {
		categories[k] = v
	}
	for name, override := range file.Categories {
		pt := domain.ParameterType(strings.ToLower(name))
		th, ok := categories[pt]
		if !ok {
			return fmt.Errorf("%w: unknown parameter category %q", domain.ErrConfiguration, name)
		}
		if override.NormalMin != nil {
			th.NormalRange.Min = override.NormalMin
		}
		if override.NormalMax != nil {
			th.NormalRange.Max = override.NormalMax
		}
		if override.ConcerningSlope != nil {
			th.ConcerningSlope = *override.ConcerningSlope
		}
		if override.CriticalSlope != nil {
			th.CriticalSlope = *override.CriticalSlope
		}
		if th.ConcerningSlope > th.CriticalSlope {
			return fmt.Errorf("%w: category %s has concerning slope above critical slope", domain.ErrConfiguration, name)
		}
		categories[pt] = th
	}

	analytes := make(map[string]domain.NormalRange, len(t.analytes))
	for k, v := range t.analytes {
		analytes[k] = v
	}
	for name, r := range file.Analytes {
		analytes[CanonicalParameter(name)] = domain.NormalRange{Min: r.Min, Max: r.Max}
	}

	t.categories = categories
	t.analytes = analytes
	return nil
}
