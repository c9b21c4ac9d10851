package execute

import (
	"tasklens/pkg/types"
)

// Constraints bound what an AI request may carry, tiered by the page's
// security classification.
type Constraints struct {
	MaxContentLength    int
	RestrictedSelectors []string
}

// ConstraintsFor returns the request constraints for a security level.
// Restricted pages get the smallest budget and the broadest selector
// blocklist; public pages get the largest budget and none.
func ConstraintsFor(level types.SecurityLevel) Constraints {
	switch level {
	case types.SecurityRestricted:
		return Constraints{
			MaxContentLength: 500,
			RestrictedSelectors: []string{
				"input", "form", "[type=password]", "[autocomplete]",
				".account", ".balance", ".ssn", ".card-number",
			},
		}
	case types.SecurityCautious:
		return Constraints{
			MaxContentLength: 2000,
			RestrictedSelectors: []string{
				"input[type=password]", ".account", ".card-number",
			},
		}
	default:
		return Constraints{
			MaxContentLength:    10000,
			RestrictedSelectors: nil,
		}
	}
}
