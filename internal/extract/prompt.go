package extract

// buildPrompt embeds the verbatim message body into the fixed instruction
// template. The wording is load-bearing: the small on-device-class models
// this was tuned against only emit clean JSON when constrained exactly like
// this, so keep the template stable.
func buildPrompt(body string) string {
	return "Extract transaction information from this bank SMS and respond ONLY with a JSON object:\n\n" +
		"SMS: \"" + body + "\"\n\n" +
		"Extract these fields:\n" +
		"- amount: numeric value only (no currency symbols)\n" +
		"- merchant: recipient/merchant name\n" +
		"- reference: transaction reference/ID\n" +
		"- account: last 4 digits of account\n\n" +
		"Respond with ONLY this JSON format:\n" +
		"{\"amount\":\"[number]\",\"merchant\":\"[name]\",\"reference\":\"[ref]\",\"account\":\"[digits]\"}\n\n" +
		"JSON:"
}
