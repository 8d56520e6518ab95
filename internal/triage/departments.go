package triage

import (
	"sort"
	"strings"
)

// GeneralMedicine is the fallback department when no symptom category
// matched, so a best-effort recommendation always exists.
const GeneralMedicine = "general-medicine"

// EmergencyMedicine leads every recommendation list for sessions that
// escalated to emergency.
const EmergencyMedicine = "emergency-medicine"

// categoryRule maps a symptom keyword (substring, lowercase) to a
// normalized category.
type categoryRule struct {
	keyword  string
	category string
}

// DepartmentTable is the static knowledge table mapping symptom
// categories to candidate departments. It is consulted, not owned, by
// the state machine, read-only after construction and safe for
// concurrent use.
type DepartmentTable struct {
	rules       []categoryRule
	departments map[string][]string
	priority    map[string]int
}

// NewDepartmentTable builds the default table.
func NewDepartmentTable() *DepartmentTable {
	return &DepartmentTable{
		rules: []categoryRule{
			{"chest pain", "cardiac"},
			{"palpitation", "cardiac"},
			{"heart", "cardiac"},
			{"breath", "respiratory"},
			{"cough", "respiratory"},
			{"wheez", "respiratory"},
			{"asthma", "respiratory"},
			{"headache", "neurological"},
			{"migraine", "neurological"},
			{"dizz", "neurological"},
			{"numb", "neurological"},
			{"seizure", "neurological"},
			{"stroke", "neurological"},
			{"slurred speech", "neurological"},
			{"stomach", "gastrointestinal"},
			{"abdominal", "gastrointestinal"},
			{"nausea", "gastrointestinal"},
			{"vomit", "gastrointestinal"},
			{"diarrhea", "gastrointestinal"},
			{"constipation", "gastrointestinal"},
			{"back pain", "musculoskeletal"},
			{"joint", "musculoskeletal"},
			{"knee", "musculoskeletal"},
			{"shoulder", "musculoskeletal"},
			{"fracture", "musculoskeletal"},
			{"sprain", "musculoskeletal"},
			{"muscle", "musculoskeletal"},
			{"rash", "dermatological"},
			{"itch", "dermatological"},
			{"skin", "dermatological"},
			{"sore throat", "ent"},
			{"earache", "ent"},
			{"ear pain", "ent"},
			{"sinus", "ent"},
			{"runny nose", "ent"},
			{"urin", "urinary"},
			{"anxiety", "mental-health"},
			{"depress", "mental-health"},
			{"insomnia", "mental-health"},
			{"fever", "general"},
			{"fatigue", "general"},
			{"chills", "general"},
		},
		departments: map[string][]string{
			"cardiac":          {"cardiology", EmergencyMedicine},
			"respiratory":      {"pulmonology", GeneralMedicine},
			"neurological":     {"neurology"},
			"gastrointestinal": {"gastroenterology"},
			"musculoskeletal":  {"orthopedics"},
			"dermatological":   {"dermatology"},
			"ent":              {"otolaryngology"},
			"urinary":          {"urology"},
			"mental-health":    {"psychiatry"},
			"general":          {GeneralMedicine},
		},
		priority: map[string]int{
			"cardiac":          0,
			"neurological":     1,
			"respiratory":      2,
			"gastrointestinal": 3,
			"urinary":          4,
			"musculoskeletal":  5,
			"ent":              6,
			"dermatological":   7,
			"mental-health":    8,
			"general":          9,
		},
	}
}

// Categorize maps symptom phrases onto the categories they cover.
// "general" does not count as a primary complaint for sufficiency, so it
// is reported last.
func (t *DepartmentTable) Categorize(symptoms []string) []string {
	seen := make(map[string]struct{})
	var cats []string
	for _, s := range symptoms {
		low := strings.ToLower(s)
		for _, r := range t.rules {
			if !strings.Contains(low, r.keyword) {
				continue
			}
			if _, ok := seen[r.category]; ok {
				continue
			}
			seen[r.category] = struct{}{}
			cats = append(cats, r.category)
		}
	}
	sort.SliceStable(cats, func(i, j int) bool {
		return t.priority[cats[i]] < t.priority[cats[j]]
	})
	return cats
}

// DepartmentsFor returns the ordered candidate department list for a set
// of categories. The result is deterministic for the same input set
// regardless of element order: categories are ranked by priority, then
// name, and departments deduplicated in rank order. An empty or unknown
// input yields the general-medicine fallback.
func (t *DepartmentTable) DepartmentsFor(categories []string) []string {
	ranked := append([]string(nil), categories...)
	sort.SliceStable(ranked, func(i, j int) bool {
		pi, iok := t.priority[ranked[i]]
		pj, jok := t.priority[ranked[j]]
		if iok != jok {
			return iok // known categories before unknown
		}
		if pi != pj {
			return pi < pj
		}
		return ranked[i] < ranked[j]
	})

	seen := make(map[string]struct{})
	var out []string
	for _, cat := range ranked {
		for _, dept := range t.departments[cat] {
			if _, ok := seen[dept]; ok {
				continue
			}
			seen[dept] = struct{}{}
			out = append(out, dept)
		}
	}
	if len(out) == 0 {
		out = []string{GeneralMedicine}
	}
	return out
}

// hasPrimaryComplaint reports whether at least one category other than
// the catch-all "general" was matched.
func hasPrimaryComplaint(categories []string) bool {
	for _, c := range categories {
		if c != "general" {
			return true
		}
	}
	return false
}

func normalizeSymptom(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
