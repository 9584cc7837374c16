package validation

import (
	"fmt"
	"strings"
)

// disposableDomains are throwaway-email providers worth flagging. The
// referral still succeeds; the warning is advisory.
var disposableDomains = map[string]bool{
	"mailinator.com":    true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"tempmail.com":      true,
	"throwaway.email":   true,
	"yopmail.com":       true,
}

// typoDomains maps likely misspellings of common providers to the
// intended domain.
var typoDomains = map[string]string{
	"gmail.co":    "gmail.com",
	"gmail.cm":    "gmail.com",
	"gmai.com":    "gmail.com",
	"gmial.com":   "gmail.com",
	"yahoo.co":    "yahoo.com",
	"yaho.com":    "yahoo.com",
	"hotmail.co":  "hotmail.com",
	"hotmial.com": "hotmail.com",
	"outlook.co":  "outlook.com",
	"icloud.co":   "icloud.com",
}

// EmailWarnings returns advisory warnings for an otherwise valid email:
// disposable-provider domains and likely domain typos. A nil map means
// nothing to flag.
func EmailWarnings(email string) map[string]string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return nil
	}
	domain := strings.ToLower(email[at+1:])

	warnings := make(map[string]string)
	if disposableDomains[domain] {
		warnings["email"] = "This looks like a disposable email address"
	}
	if intended, ok := typoDomains[domain]; ok {
		local := email[:at]
		warnings["email"] = fmt.Sprintf("Did you mean %s@%s?", local, intended)
	}

	if len(warnings) == 0 {
		return nil
	}
	return warnings
}
