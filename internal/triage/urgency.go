package triage

import "strings"

// Escalation term tables. Matching is case-insensitive substring search
// over the raw utterance and each extracted symptom. The lists err on the
// side of escalation: a false emergency costs one wasted ER referral, a
// missed one is unacceptable.
var (
	emergencyTerms = []string{
		"chest pain",
		"crushing pain",
		"can't breathe",
		"cannot breathe",
		"not breathing",
		"stopped breathing",
		"unconscious",
		"loss of consciousness",
		"passed out",
		"unresponsive",
		"severe bleeding",
		"bleeding heavily",
		"bleeding won't stop",
		"coughing up blood",
		"stroke",
		"face drooping",
		"slurred speech",
		"seizure",
		"convulsion",
		"overdose",
		"suicid",
		"anaphyla",
		"choking",
	}

	urgentTerms = []string{
		"difficulty breathing",
		"shortness of breath",
		"severe pain",
		"intense pain",
		"worst headache",
		"vomiting blood",
		"blood in stool",
		"blood in urine",
		"high fever",
		"broken bone",
		"fracture",
		"deep cut",
		"severe burn",
		"fainted",
	}

	attentionTerms = []string{
		"fever",
		"persistent",
		"getting worse",
		"worsening",
		"spreading",
		"dizzy",
		"dizziness",
		"vomiting",
		"dehydrat",
		"swelling",
		"infection",
	}
)

// EscalateUrgency is the pure escalation policy: it computes an urgency
// from the new symptoms and raw utterance and returns
// max(current, computed) under normal < attention < urgent < emergency.
// It runs on every turn before the state transition decision; the result
// never decreases a session's urgency.
func EscalateUrgency(current Urgency, newSymptoms []string, rawUtterance string) Urgency {
	computed := classifyUrgency(newSymptoms, rawUtterance)
	if computed > current {
		return computed
	}
	return current
}

func classifyUrgency(symptoms []string, utterance string) Urgency {
	texts := make([]string, 0, len(symptoms)+1)
	texts = append(texts, strings.ToLower(utterance))
	for _, s := range symptoms {
		texts = append(texts, strings.ToLower(s))
	}

	if matchesAny(texts, emergencyTerms) {
		return UrgencyEmergency
	}
	if matchesAny(texts, urgentTerms) {
		return UrgencyUrgent
	}
	if matchesAny(texts, attentionTerms) {
		return UrgencyAttention
	}
	return UrgencyNormal
}

func matchesAny(texts, terms []string) bool {
	for _, text := range texts {
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}
