// Package security classifies websites into security tiers and sanitizes
// page content and user input before it reaches the AI provider.
package security

import (
	"regexp"
	"strings"

	"tasklens/pkg/types"
)

// Classifier decides how sensitive a website is and scrubs content
// accordingly. The orchestrator only depends on this interface.
type Classifier interface {
	Classify(domain string) types.SecurityLevel
	Sanitize(content string, level types.SecurityLevel) string
}

// restrictedDomainsRe covers domains whose content must never leave the
// machine unscrubbed: banking, health and government services.
var restrictedDomainsRe = regexp.MustCompile(`(?i)(bank|banking|paypal|venmo|health|medical|clinic|insurance|\.gov$|\.gov\.)`)

// cautiousDomainsRe covers login and account-management surfaces.
var cautiousDomainsRe = regexp.MustCompile(`(?i)(login|signin|auth|account|checkout|payment|wallet)`)

// sensitiveTokenRe scrubs obvious secrets: card numbers, SSN-shaped
// digits and long opaque tokens.
var sensitiveTokenRe = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b|\b\d{3}-\d{2}-\d{4}\b|\b[A-Za-z0-9_\-]{32,}\b`)

// emailRe scrubs email addresses at the restricted tier.
var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// RuleClassifier is the default rule-based Classifier.
type RuleClassifier struct{}

// NewRuleClassifier creates the default classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify maps a domain to its security tier. Unknown domains are public.
func (c *RuleClassifier) Classify(domain string) types.SecurityLevel {
	d := strings.ToLower(domain)
	if restrictedDomainsRe.MatchString(d) {
		return types.SecurityRestricted
	}
	if cautiousDomainsRe.MatchString(d) {
		return types.SecurityCautious
	}
	return types.SecurityPublic
}

// Sanitize scrubs content per tier. Public content passes through;
// cautious content loses token-shaped strings; restricted content
// additionally loses email addresses.
func (c *RuleClassifier) Sanitize(content string, level types.SecurityLevel) string {
	switch level {
	case types.SecurityPublic:
		return content
	case types.SecurityCautious:
		return sensitiveTokenRe.ReplaceAllString(content, "[redacted]")
	default:
		scrubbed := sensitiveTokenRe.ReplaceAllString(content, "[redacted]")
		return emailRe.ReplaceAllString(scrubbed, "[redacted]")
	}
}
