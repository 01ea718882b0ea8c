package fitter

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Domain selects which specialised abbreviation table is layered over the
// general one.
type Domain string

const (
	DomainGeneral  Domain = "general"
	DomainMedical  Domain = "medical"
	DomainLegal    Domain = "legal"
	DomainBusiness Domain = "business"
)

var addressAbbreviations = map[string]string{
	"Street": "St", "Avenue": "Ave", "Road": "Rd", "Boulevard": "Blvd",
	"Drive": "Dr", "Lane": "Ln", "Court": "Ct", "Place": "Pl", "Circle": "Cir",
	"Highway": "Hwy", "Parkway": "Pkwy", "Terrace": "Ter", "Trail": "Trl",
	"North": "N", "South": "S", "East": "E", "West": "W",
	"Northeast": "NE", "Northwest": "NW", "Southeast": "SE", "Southwest": "SW",
	"Apartment": "Apt", "Suite": "Ste", "Building": "Bldg", "Floor": "Fl",
	"Room": "Rm",
}

var titleAbbreviations = map[string]string{
	"Doctor": "Dr", "Professor": "Prof", "Mister": "Mr", "Misses": "Mrs",
	"Miss": "Ms", "Junior": "Jr", "Senior": "Sr", "Incorporated": "Inc",
	"Corporation": "Corp", "Company": "Co", "Limited": "Ltd",
	"Representative": "Rep", "Executive": "Exec", "Director": "Dir",
	"Manager": "Mgr", "Assistant": "Asst",
}

var stateAbbreviations = map[string]string{
	"Alabama": "AL", "Alaska": "AK", "Arizona": "AZ", "Arkansas": "AR",
	"California": "CA", "Colorado": "CO", "Connecticut": "CT", "Delaware": "DE",
	"Florida": "FL", "Georgia": "GA", "Hawaii": "HI", "Idaho": "ID",
	"Illinois": "IL", "Indiana": "IN", "Iowa": "IA", "Kansas": "KS",
	"Kentucky": "KY", "Louisiana": "LA", "Maine": "ME", "Maryland": "MD",
	"Massachusetts": "MA", "Michigan": "MI", "Minnesota": "MN", "Mississippi": "MS",
	"Missouri": "MO", "Montana": "MT", "Nebraska": "NE", "Nevada": "NV",
	"New Hampshire": "NH", "New Jersey": "NJ", "New Mexico": "NM", "New York": "NY",
	"North Carolina": "NC", "North Dakota": "ND", "Ohio": "OH", "Oklahoma": "OK",
	"Oregon": "OR", "Pennsylvania": "PA", "Rhode Island": "RI", "South Carolina": "SC",
	"South Dakota": "SD", "Tennessee": "TN", "Texas": "TX", "Utah": "UT",
	"Vermont": "VT", "Virginia": "VA", "Washington": "WA", "West Virginia": "WV",
	"Wisconsin": "WI", "Wyoming": "WY", "District of Columbia": "DC",
}

var monthAbbreviations = map[string]string{
	"January": "Jan", "February": "Feb", "March": "Mar", "April": "Apr",
	"June": "Jun", "July": "Jul", "August": "Aug", "September": "Sep",
	"October": "Oct", "November": "Nov", "December": "Dec",
}

var commonAbbreviations = map[string]string{
	"Number": "No", "Numbers": "Nos", "Telephone": "Tel", "Extension": "Ext",
	"Department": "Dept", "Information": "Info", "Reference": "Ref",
	"International": "Intl", "Association": "Assn", "University": "Univ",
	"Institute": "Inst", "Foundation": "Fdn", "Organization": "Org",
	"Government": "Govt", "Approximately": "Approx", "Additional": "Addl",
	"Maximum": "Max", "Minimum": "Min", "Average": "Avg", "Estimated": "Est",
	"Continued": "Cont", "Certificate": "Cert", "Professional": "Prof",
}

var medicalAbbreviations = map[string]string{
	"Patient": "Pt", "Diagnosis": "Dx", "Prescription": "Rx", "Treatment": "Tx",
	"History": "Hx", "Symptoms": "Sx", "Complaint": "CC", "Emergency Room": "ER",
	"Intensive Care Unit": "ICU", "Blood Pressure": "BP", "Heart Rate": "HR",
	"Frequency": "Freq", "Tablet": "Tab", "Capsule": "Cap", "Solution": "Sol",
	"Appointment": "Appt", "Referral": "Ref", "Examination": "Exam",
	"Physician": "Phys", "Condition": "Cond",
}

var legalAbbreviations = map[string]string{
	"Plaintiff": "Pl", "Defendant": "Def", "Attorney": "Atty", "versus": "v.",
	"Agreement": "Agmt", "Contract": "K", "Regulation": "Reg", "Statute": "Stat",
	"Exhibit": "Ex", "Judgement": "Jmt", "Petition": "Pet", "Respondent": "Resp",
	"Appellant": "Appt", "Circuit": "Cir", "District": "Dist", "Evidence": "Evid",
	"Testimony": "Test", "Affidavit": "Aff",
}

var businessAbbreviations = map[string]string{
	"Account": "Acct", "Amount": "Amt", "Balance": "Bal", "Invoice": "Inv",
	"Payment": "Pmt", "Received": "Recd", "Year to Date": "YTD",
	"Return on Investment": "ROI", "Purchase Order": "PO", "Quarter": "Qtr",
	"Fiscal Year": "FY", "Meeting": "Mtg",
}

// Abbreviations returns the merged table for domain. Unknown domains get the
// general table.
func Abbreviations(domain Domain) map[string]string {
	out := make(map[string]string)
	for _, table := range []map[string]string{
		addressAbbreviations,
		titleAbbreviations,
		stateAbbreviations,
		monthAbbreviations,
		commonAbbreviations,
	} {
		for k, v := range table {
			out[k] = v
		}
	}

	var extra map[string]string
	switch Domain(strings.ToLower(string(domain))) {
	case DomainMedical:
		extra = medicalAbbreviations
	case DomainLegal:
		extra = legalAbbreviations
	case DomainBusiness:
		extra = businessAbbreviations
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

type abbreviation struct {
	pattern     *regexp.Regexp
	replacement string
}

// compileAbbreviations orders entries longest first so multi-word phrases
// ("West Virginia") win over their parts ("West").
func compileAbbreviations(table map[string]string) []abbreviation {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})

	out := make([]abbreviation, 0, len(keys))
	for _, k := range keys {
		out = append(out, abbreviation{
			pattern:     regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
			replacement: table[k],
		})
	}
	return out
}

func applyAbbreviations(text string, rules []abbreviation) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllLiteralString(text, r.replacement)
	}
	return text
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"for": true, "with": true, "in": true, "on": true, "at": true, "by": true,
}

func removeStopWords(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if !stopWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
