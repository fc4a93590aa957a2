package extract

import (
	"regexp"
	"strings"
)

// Bank SMS formats vary wildly, so every field gets an ordered list of
// patterns tried first-match-wins. The order is a priority policy: for
// merchants the "To <payee>" forms rank above "FROM <payer>" so that a
// transfer notification resolves to the recipient, not the sender.

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:Rs\.?|INR|₹)\s*([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`([0-9,]+\.?[0-9]*)\s*(?:Rs\.?|INR|₹)`),
	regexp.MustCompile(`(?i)amount[\s:]*(?:Rs\.?|INR|₹)?\s*([0-9,]+\.?[0-9]*)`),
	regexp.MustCompile(`(?i)sent\s+(?:Rs\.?|INR|₹)?\s*([0-9,]+\.?[0-9]*)`),
}

var accountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`A/C[\s*]+([0-9X*]+)`),
	regexp.MustCompile(`(?i)from[\s]+[A-Z\s]+A/C[\s*]+([0-9X*]+)`),
	regexp.MustCompile(`(?i)account[\s*]+([0-9X*]+)`),
}

var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:Ref|UPI Ref|Txn|Transaction|Reference)[\s:]+([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)UTR[\s:]*([A-Z0-9]+)`),
	regexp.MustCompile(`(?i)TXN[\s:]*([A-Z0-9]+)`),
}

var merchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)To\s+([A-Z0-9\s]+?)(?:\s+On|\s+UPI|\s+A/C|\s*$)`),
	regexp.MustCompile(`(?i)(?:paid to|sent to)\s+([A-Z0-9\s]+?)(?:\s+on|\s+via|\s+from)`),
	regexp.MustCompile(`(?i)merchant[\s:]+([A-Z0-9\s]+)`),
	regexp.MustCompile(`(?i)FROM\s+([A-Z0-9\s]+?)(?:\s+On|\s+UPI|\s+A/C)`),
}

// merchantFallback is the last resort when none of the ranked patterns
// produced a usable name: any capitalized run of 3+ chars after TO/FROM.
var merchantFallback = regexp.MustCompile(`(?i)(?:TO|FROM)\s+([A-Z][A-Z0-9\s]{2,})`)

// cascadeStage is the deterministic fallback extractor. It needs no backend
// and succeeds iff both amount and merchant resolve; account and reference
// default to empty and never block success.
func cascadeStage(body string) (stageFields, bool) {
	var f stageFields

	var haveAmount bool
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		if amt, ok := parseAmount(m[1]); ok {
			f.Amount = amt
			haveAmount = true
			break
		}
	}

	f.Account = firstMatch(body, accountPatterns)
	f.Reference = firstMatch(body, referencePatterns)

	for _, p := range merchantPatterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		if name := strings.TrimSpace(m[1]); name != "" {
			f.Merchant = name
			break
		}
	}
	if f.Merchant == "" {
		if m := merchantFallback.FindStringSubmatch(body); m != nil {
			f.Merchant = strings.TrimSpace(m[1])
		}
	}

	if !haveAmount || f.Merchant == "" {
		return stageFields{}, false
	}
	return f, true
}

// firstMatch returns the first capture across an ordered pattern list.
func firstMatch(body string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(body); m != nil {
			return m[1]
		}
	}
	return ""
}
