package risk

import "regexp"

// matcher is one fixed PHI recognizer. Matchers run in table order and a
// later matcher never reports a span that overlaps an earlier detection, so
// the table lists the most specific shapes first.
type matcher struct {
	id       string
	category Category
	severity Severity
	action   SuggestedAction
	hipaa    string
	re       *regexp.Regexp
}

// Safe Harbor identifier classes, 45 CFR 164.514(b)(2)(i).
const (
	hipaaNames     = "164.514(b)(2)(i)(A) names"
	hipaaGeography = "164.514(b)(2)(i)(B) geographic subdivisions smaller than a state"
	hipaaDates     = "164.514(b)(2)(i)(C) dates directly related to an individual"
	hipaaPhone     = "164.514(b)(2)(i)(D) telephone numbers"
	hipaaEmail     = "164.514(b)(2)(i)(F) electronic mail addresses"
	hipaaSSN       = "164.514(b)(2)(i)(G) social security numbers"
	hipaaMRN       = "164.514(b)(2)(i)(H) medical record numbers"
)

var matchers = []matcher{
	{
		id:       "ssn_dashed",
		category: CategorySSN,
		severity: SeverityCritical,
		action:   ActionRedact,
		hipaa:    hipaaSSN,
		re:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		id:       "ssn_labelled",
		category: CategorySSN,
		severity: SeverityCritical,
		action:   ActionRedact,
		hipaa:    hipaaSSN,
		re:       regexp.MustCompile(`(?i)\b(?:ssn|social security(?: number| no\.?)?)\s*[:#]?\s*\d{9}\b`),
	},
	{
		id:       "mrn_labelled",
		category: CategoryMRN,
		severity: SeverityHigh,
		action:   ActionRedact,
		hipaa:    hipaaMRN,
		re:       regexp.MustCompile(`(?i)\b(?:mrn|medical record(?: number| no\.?)?|patient id)\s*[:#]?\s*[a-z]{0,3}-?\d{5,10}\b`),
	},
	{
		id:       "email_address",
		category: CategoryEmail,
		severity: SeverityMedium,
		action:   ActionRedact,
		hipaa:    hipaaEmail,
		re:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		id:       "date_numeric",
		category: CategoryDate,
		severity: SeverityMedium,
		action:   ActionReview,
		hipaa:    hipaaDates,
		re:       regexp.MustCompile(`\b(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}-\d{2}-\d{2})\b`),
	},
	{
		id:       "date_written",
		category: CategoryDate,
		severity: SeverityMedium,
		action:   ActionReview,
		hipaa:    hipaaDates,
		re:       regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
	},
	{
		id:       "phone_us",
		category: CategoryPhone,
		severity: SeverityMedium,
		action:   ActionRedact,
		hipaa:    hipaaPhone,
		re:       regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.]\d{4}\b`),
	},
	{
		id:       "street_address",
		category: CategoryAddress,
		severity: SeverityHigh,
		action:   ActionRemove,
		hipaa:    hipaaGeography,
		re: regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}` +
			`(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl)\b\.?`),
	},
	{
		id:       "name_honorific",
		category: CategoryName,
		severity: SeverityHigh,
		action:   ActionRedact,
		hipaa:    hipaaNames,
		re:       regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`),
	},
	{
		id:       "name_patient_label",
		category: CategoryName,
		severity: SeverityHigh,
		action:   ActionRedact,
		hipaa:    hipaaNames,
		re:       regexp.MustCompile(`\b(?i:patient(?:\s+name)?|subject name|participant name)\s*:\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`),
	},
	{
		id:       "zip_code",
		category: CategoryZip,
		severity: SeverityMedium,
		action:   ActionRemove,
		hipaa:    hipaaGeography,
		re:       regexp.MustCompile(`\b(?:[A-Z]{2}\s+\d{5}(?:-\d{4})?|(?i:zip(?:\s*code)?)\s*[:#]?\s*\d{5}(?:-\d{4})?)\b`),
	},
}

// Categories lists every category the classifier can report, in a stable order.
func Categories() []Category {
	return []Category{
		CategorySSN, CategoryMRN, CategoryName, CategoryPhone,
		CategoryEmail, CategoryDate, CategoryAddress, CategoryZip,
	}
}
