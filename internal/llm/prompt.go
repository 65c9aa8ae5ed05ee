package llm

import "strings"

// MaxPromptChars caps the document text sent to the model.
const MaxPromptChars = 24000

const SystemPrompt = "You are a smart assistant that extracts procurement data into structured format."

var vendorFields = []string{
	"name", "name_ar", "address", "short_name", "vat", "email", "phone",
	"mobile", "city", "zip", "state", "country", "website", "sector",
}

var itemFields = []string{
	"Part Number", "Full Description", "Quantity", "Unit Price",
	"Currency", "Type", "Technology", "Category",
}

// AllowedCurrencies are the only ISO codes the model may put in Currency.
var AllowedCurrencies = []string{"SAR", "USD", "EUR", "GBP", "AED"}

// BuildUserPrompt asks for the quotation JSON shape and appends the text.
func BuildUserPrompt(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > MaxPromptChars {
		text = text[:MaxPromptChars] + "\n…(truncated)"
	}

	var b strings.Builder
	b.WriteString("Extract the structured data from the procurement document below and return it as a JSON object with this shape:\n")
	b.WriteString(`{"Vendor": {`)
	for i, f := range vendorFields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + f + `": ""`)
	}
	b.WriteString(`}, "Items": [{`)
	for i, f := range itemFields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`"` + f + `": ""`)
	}
	b.WriteString("}]}\n\n")

	rules := []string{
		"Include every item line, even if the Part Number or description repeats. Do not merge duplicates.",
		"Only fill Part Number with a real part number, SKU or model number; otherwise omit it.",
		"Full Description keeps bullet points and multiple lines when present.",
		"Quantity is the unit count (Qty), never a duration or term.",
		"Unit Price is the per-unit price; if only a line total is given, divide it by Quantity.",
		"Currency must be one of: " + strings.Join(AllowedCurrencies, ", ") + ". Leave it empty if unclear.",
		"Use ISO codes for country.",
		"Type is Service, Storable Product or Consumable based on the description.",
		"Technology is the vendor or platform the item belongs to.",
		"Vendor is the sender of the quotation, not the recipient. Prefer details matching the vendor's email domain and ignore customer details.",
		"Sector, if it can be inferred, is government, corporate or non_profit.",
		"If a field is missing, omit it. Never output null. Return ONLY the JSON object, without commentary.",
	}
	for _, r := range rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}

	b.WriteString("\nDocument text:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}
