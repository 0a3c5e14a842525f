package llm

import "strings"

// SummaryInstruction is the fixed instruction for the free-text summarization call.
const SummaryInstruction = "Write a concise summary of the following:"

// BuildSummaryMessages puts the instruction in the system message and the document text in the user message.
func BuildSummaryMessages(context string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SummaryInstruction},
		{Role: RoleUser, Content: context},
	}
}

// BuildExtractionSystemPrompt tells the model how to fill the invoice record.
func BuildExtractionSystemPrompt() string {
	parts := []string{
		"You are an invoice parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Copy invoice_id and date_time exactly as they appear; do not reformat dates.",
		"Amounts are plain numbers without currency symbols or thousands separators.",
		"order_details is a list with one object per line item; use string values.",
		"If an optional field is not present, set it to null.",
		"Do not invent values that are not in the text.",
	}
	return strings.Join(parts, " ")
}

// BuildExtractionMessages wraps the summary for the structured-output call.
func BuildExtractionMessages(summary string) []Message {
	return []Message{
		{Role: RoleSystem, Content: BuildExtractionSystemPrompt()},
		{Role: RoleUser, Content: summary},
	}
}
