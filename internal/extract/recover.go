package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// The model's response is not trusted to be clean JSON: it may wrap the
// object in prose, code fences or trailing text, and may add keys we never
// asked for. Recovery therefore slices out the first '{' .. last '}' span
// and pulls each field with an independent scoped lookup instead of running
// it through a strict JSON parser. A missing key is just an empty field.

var (
	amountField    = regexp.MustCompile(`"amount"\s*:\s*"([^"]+)"`)
	merchantField  = regexp.MustCompile(`"merchant"\s*:\s*"([^"]+)"`)
	referenceField = regexp.MustCompile(`"reference"\s*:\s*"([^"]+)"`)
	accountField   = regexp.MustCompile(`"account"\s*:\s*"([^"]+)"`)
)

// recoverFields validates and extracts the four fields from a raw model
// response. The attempt is void unless the amount parses to a non-negative
// number and the merchant is non-blank and not the literal "null" (a known
// small-model artifact).
func recoverFields(response string) (stageFields, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return stageFields{}, false
	}
	fragment := response[start : end+1]

	amount, ok := parseAmount(jsonString(amountField, fragment))
	if !ok {
		return stageFields{}, false
	}
	merchant := strings.TrimSpace(jsonString(merchantField, fragment))
	if merchant == "" || merchant == "null" {
		return stageFields{}, false
	}

	return stageFields{
		Amount:    amount,
		Merchant:  merchant,
		Reference: strings.TrimSpace(jsonString(referenceField, fragment)),
		Account:   strings.TrimSpace(jsonString(accountField, fragment)),
	}, true
}

// jsonString pulls the quoted value for one key out of the fragment.
func jsonString(pattern *regexp.Regexp, fragment string) string {
	if m := pattern.FindStringSubmatch(fragment); m != nil {
		return m[1]
	}
	return ""
}

// parseAmount strips thousands separators and parses a decimal magnitude.
// Negative or non-numeric input fails; amounts are currency-agnostic
// magnitudes, never signed.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
