package schema

import (
	"regexp"
	"strings"

	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/matcher"
	"github.com/a3tai/mcp-pdf-formfill/internal/pdf/transform"
)

// FormIRS1040 identifies the US individual income tax return
const FormIRS1040 = "irs_1040"

// knownField labels a field of a recognised form whose own dictionaries carry
// only generated identifiers
type knownField struct {
	label   string
	section string
	input   string
}

var (
	ssnPattern      = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	currencyPattern = regexp.MustCompile(`^-?\$?\d[\d,]*(\.\d{1,2})?$`)
)

// Keyed by leaf identifier, e.g. "f1_01" for "topmostSubform[0].Page1[0].f1_01[0]"
var irs1040Fields = map[string]knownField{
	"f1_01": {"Your first name and middle initial", "Personal Information", "text"},
	"f1_02": {"Your last name", "Personal Information", "text"},
	"f1_03": {"Your social security number", "Personal Information", "ssn"},
	"f1_04": {"Spouse's first name and middle initial", "Personal Information", "text"},
	"f1_05": {"Spouse's last name", "Personal Information", "text"},
	"f1_06": {"Spouse's social security number", "Personal Information", "ssn"},
	"f1_07": {"Home address (number and street)", "Personal Information", "text"},
	"f1_08": {"Apartment number", "Personal Information", "text"},
	"f1_09": {"City, town, or post office", "Personal Information", "text"},
	"f1_10": {"State", "Personal Information", "text"},
	"f1_11": {"ZIP code", "Personal Information", "text"},
	"f1_12": {"Foreign country name", "Personal Information", "text"},
	"f1_13": {"Foreign province/state/county", "Personal Information", "text"},
	"f1_14": {"Foreign postal code", "Personal Information", "text"},

	"c1_1": {"Single", "Filing Status", "checkbox"},
	"c1_2": {"Married filing jointly", "Filing Status", "checkbox"},
	"c1_3": {"Married filing separately", "Filing Status", "checkbox"},
	"c1_4": {"Head of household", "Filing Status", "checkbox"},
	"c1_5": {"Qualifying surviving spouse", "Filing Status", "checkbox"},
	"c1_6": {"Presidential Election Campaign - You", "Personal Information", "checkbox"},
	"c1_7": {"Presidential Election Campaign - Spouse", "Personal Information", "checkbox"},
	"c1_8": {"Digital assets - Yes", "Digital Assets", "checkbox"},
	"c1_9": {"Digital assets - No", "Digital Assets", "checkbox"},

	"f1_31": {"Dependent 1 - First name", "Dependents", "text"},
	"f1_32": {"Dependent 1 - Last name", "Dependents", "text"},
	"f1_33": {"Dependent 1 - SSN", "Dependents", "ssn"},
	"f1_34": {"Dependent 1 - Relationship", "Dependents", "text"},

	"f1_47": {"W-2 wages and salaries", "Income", "currency"},
	"f1_48": {"Household employee wages", "Income", "currency"},
	"f1_49": {"Tip income", "Income", "currency"},
	"f1_50": {"Medicaid waiver payments", "Income", "currency"},
	"f1_51": {"Dependent care benefits", "Income", "currency"},
	"f1_52": {"Adoption benefits", "Income", "currency"},
	"f1_53": {"Form 8919 wages", "Income", "currency"},
	"f1_54": {"Other earned income", "Income", "currency"},
	"f1_55": {"Nontaxable combat pay", "Income", "currency"},
	"f1_56": {"Total wages (add lines 1a-1h)", "Income", "currency"},
	"f1_57": {"Tax-exempt interest", "Income", "currency"},
	"f1_58": {"Taxable interest", "Income", "currency"},
	"f1_59": {"Qualified dividends", "Income", "currency"},
	"f1_60": {"Ordinary dividends", "Income", "currency"},
	"f1_61": {"IRA distributions", "Income", "currency"},
	"f1_62": {"IRA taxable amount", "Income", "currency"},
	"f1_63": {"Pensions and annuities", "Income", "currency"},
	"f1_64": {"Pensions taxable amount", "Income", "currency"},
	"f1_65": {"Social security benefits", "Income", "currency"},
	"f1_66": {"Social security taxable amount", "Income", "currency"},
	"f1_67": {"Capital gain or (loss)", "Income", "currency"},
	"f1_68": {"Additional income", "Income", "currency"},
	"f1_69": {"Total income", "Income", "currency"},
	"f1_70": {"Adjustments to income", "Income", "currency"},
	"f1_71": {"Adjusted gross income", "Income", "currency"},

	"f2_01": {"Adjusted gross income (from page 1)", "Tax Computation", "currency"},
	"f2_02": {"Standard deduction or itemized deductions", "Tax Computation", "currency"},
	"f2_03": {"Qualified business income deduction", "Tax Computation", "currency"},
	"f2_04": {"Add lines 12 and 13", "Tax Computation", "currency"},
	"f2_05": {"Taxable income", "Tax Computation", "currency"},
	"f2_06": {"Tax", "Tax and Credits", "currency"},
	"f2_07": {"Schedule 2, line 3", "Tax and Credits", "currency"},
	"f2_08": {"Add lines 16 and 17", "Tax and Credits", "currency"},
	"f2_09": {"Child tax credit / credit for other dependents", "Tax and Credits", "currency"},
	"f2_10": {"Schedule 3, line 8", "Tax and Credits", "currency"},
	"f2_11": {"Add lines 19 and 20", "Tax and Credits", "currency"},
	"f2_12": {"Subtract line 21 from line 18", "Tax and Credits", "currency"},
	"f2_13": {"Other taxes", "Tax and Credits", "currency"},
	"f2_14": {"Total tax", "Tax and Credits", "currency"},
	"f2_15": {"Federal income tax withheld", "Payments", "currency"},
	"f2_16": {"Estimated tax payments", "Payments", "currency"},
	"f2_17": {"Earned income credit (EIC)", "Payments", "currency"},
	"f2_18": {"Additional child tax credit", "Payments", "currency"},
	"f2_19": {"American opportunity credit", "Payments", "currency"},

	"f2_31": {"Refund amount", "Refund", "currency"},
	"f2_32": {"Routing number", "Refund", "text"},
	"f2_33": {"Account number", "Refund", "text"},
	"f2_34": {"Amount you owe", "Amount You Owe", "currency"},
	"f2_35": {"Estimated tax penalty", "Amount You Owe", "currency"},
}

// DetectFormType recognises a form from its document title
func DetectFormType(title string) string {
	t := strings.ToLower(title)
	if strings.Contains(t, "1040") && (strings.Contains(t, "tax") || strings.Contains(t, "income")) {
		return FormIRS1040
	}
	return ""
}

func lookupKnownField(formType, name string) (knownField, bool) {
	if formType != FormIRS1040 {
		return knownField{}, false
	}
	kf, ok := irs1040Fields[matcher.Leaf(name)]
	return kf, ok
}

// applyKnownForm labels fields of a recognised form and derives purpose and
// value patterns from the table's input types
func applyKnownForm(formType string, fields []CanonicalField) {
	for i := range fields {
		kf, ok := lookupKnownField(formType, fields[i].Name)
		if !ok {
			continue
		}
		f := &fields[i]
		f.Label = kf.label
		f.Section = kf.section
		switch kf.input {
		case "ssn":
			f.Purpose = transform.PurposeSSN
			f.Constraints.Pattern = ssnPattern
		case "currency":
			f.Constraints.Pattern = currencyPattern
		}
	}
}
