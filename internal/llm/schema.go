package llm

// BuildQuotationJSONSchema returns the JSON Schema answers are validated
// against after sanitizing. Presence of Vendor and Items is not required
// here; that is a validity decision made by the pipeline.
func BuildQuotationJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"Vendor": stringObject(vendorFields),
			"Items": map[string]any{
				"type":  "array",
				"items": stringObject(itemFields),
			},
		},
		"additionalProperties": false,
	}
}

func stringObject(fields []string) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}
