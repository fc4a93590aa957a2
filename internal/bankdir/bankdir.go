// Package bankdir classifies SMS sender addresses against a configured
// directory of bank identifiers.
package bankdir

import (
	"strings"

	"github.com/dvloznov/sms-expense-tracker/internal/domain"
)

// Classify finds the bank a sender belongs to. Matching is case-insensitive
// substring containment and the first active entry in directory order wins;
// there is no scoring or longest-match preference. A false return means the
// sender is not a configured bank, which is the normal case for most SMS
// traffic and not an error.
func Classify(sender string, directory []domain.BankIdentifier) (domain.BankIdentifier, bool) {
	s := strings.ToLower(sender)
	for _, id := range directory {
		if !id.Active {
			continue
		}
		if strings.Contains(s, strings.ToLower(id.Identifier)) {
			return id, true
		}
	}
	return domain.BankIdentifier{}, false
}

// Default returns the built-in directory covering the common Indian bank
// sender prefixes. Config can replace or extend this list.
func Default() []domain.BankIdentifier {
	return []domain.BankIdentifier{
		{Identifier: "VM-HDFCBK", BankName: "HDFC Bank", Active: true},
		{Identifier: "VK-HDFCBK", BankName: "HDFC Bank", Active: true},
		{Identifier: "AD-HDFCBK", BankName: "HDFC Bank", Active: true},
		{Identifier: "VM-ICICIB", BankName: "ICICI Bank", Active: true},
		{Identifier: "VK-ICICIB", BankName: "ICICI Bank", Active: true},
		{Identifier: "VM-SBIBNK", BankName: "State Bank of India", Active: true},
		{Identifier: "VK-SBIBNK", BankName: "State Bank of India", Active: true},
		{Identifier: "VM-AXISB", BankName: "Axis Bank", Active: true},
		{Identifier: "VK-AXIBNK", BankName: "Axis Bank", Active: true},
		{Identifier: "VM-KOTAKB", BankName: "Kotak Bank", Active: true},
		{Identifier: "VK-KOTAKB", BankName: "Kotak Bank", Active: true},
		{Identifier: "VM-PAYTM", BankName: "Paytm Payments Bank", Active: true},
		{Identifier: "VK-PYTMB", BankName: "Paytm Payments Bank", Active: true},
		{Identifier: "VM-IDFCFB", BankName: "IDFC First Bank", Active: true},
		{Identifier: "VK-IDFCFB", BankName: "IDFC First Bank", Active: true},
	}
}
