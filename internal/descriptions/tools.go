package descriptions

import "sort"

// Tool names exposed by the MCP server
const (
	ToolFormFields  = "pdf_form_fields"
	ToolFormFill    = "pdf_form_fill"
	ToolFormPreview = "pdf_form_preview"
	ToolServerInfo  = "pdf_server_info"
)

const (
	PDFFormFieldsDescription = `List the fillable fields of a PDF form with their kinds, labels, positions and constraints.

**When to use:** Before filling a form, to learn which field names the document expects and which values are allowed.

**What you get:** One entry per field: identifier, kind (text, checkbox, radio, choice), human label, inferred purpose (phone, date, ssn, email, address), page and position, maximum length and the options of choice and radio fields. Documents without interactive fields report fields detected from their printed labels.

**Examples:**
• Inspect a tax form: "List the fields of f1040.pdf"
• Find allowed options: "Which states can be chosen in application.pdf?"

**Best practices:** Use the reported identifiers or labels as keys for pdf_form_fill. Keys do not need to match exactly; close names and labels are resolved automatically.`

	PDFFormFillDescription = `Fill a PDF form from a flat mapping of field names to values and save the result.

**When to use:** You have the values for a form and want a completed PDF.

**How it works:**
1. Each key is matched to a field by exact, case-insensitive, cleaned, XFA leaf, fuzzy and containment rules
2. Values are normalised for the field's purpose (phone numbers, ISO dates, social security numbers)
3. Values longer than a field allows are shortened with abbreviations, stop-word removal or, if configured, a language model, and truncated only as a last resort
4. Interactive fields are written directly; values that cannot be placed there are drawn as text at the field's position

**Examples:**
• "Fill f1040.pdf with first name Jane, last name Doe and SSN 123456789, save as f1040-jane.pdf"
• "Fill the scanned-layout intake.pdf with name and date of birth"

**Best practices:** Call pdf_form_preview first for unfamiliar forms. Check the per-field report for warnings about truncated or unmatched values.`

	PDFFormPreviewDescription = `Show how values would be placed into a PDF form without writing anything.

**When to use:** To check key matching, value formatting and shortening before committing to a fill.

**What you get:** For every key: the matched field and the rule that matched it, the value after formatting and fitting, how it would be written (acroform or overlay), and any validation problem.

**Best practices:** Resolve unmatched keys and validation errors reported here, then call pdf_form_fill with the same data.`

	PDFServerInfoDescription = `Get server information, configured directories, fill settings and available tools.

**When to use:** To discover where templates are read from and filled documents are written, and whether model-based text compression is enabled.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolFormFields:  PDFFormFieldsDescription,
	ToolFormFill:    PDFFormFillDescription,
	ToolFormPreview: PDFFormPreviewDescription,
	ToolServerInfo:  PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the available tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
