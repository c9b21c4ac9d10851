// Package pattern evaluates task website patterns against candidate strings.
package pattern

import (
	"regexp"
	"sync"
)

// bareDomainRe accepts plain domain strings such as "example.com". Patterns
// that are neither valid regexes nor bare domains are rejected at write time.
var bareDomainRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]*[A-Za-z0-9]$`)

// Matcher evaluates textual patterns with fail-closed semantics: a pattern
// that does not compile never matches and never aborts ranking.
type Matcher struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
	bad      map[string]struct{}
}

// NewMatcher creates a matcher with an internal compile cache.
func NewMatcher() *Matcher {
	return &Matcher{
		compiled: make(map[string]*regexp.Regexp),
		bad:      make(map[string]struct{}),
	}
}

// Matches reports whether candidate matches pattern, treated as a
// case-insensitive regular expression. Malformed patterns fail closed.
// An empty candidate is still matched: patterns such as `.*` accept it.
func (m *Matcher) Matches(pattern, candidate string) bool {
	if pattern == "" {
		return false
	}

	re := m.compile(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(candidate)
}

// compile returns the compiled regex for pattern, caching both successes
// and failures. Patterns are compiled lazily, on first match attempt.
func (m *Matcher) compile(pattern string) *regexp.Regexp {
	m.mu.RLock()
	re, ok := m.compiled[pattern]
	if !ok {
		_, bad := m.bad[pattern]
		m.mu.RUnlock()
		if bad {
			return nil
		}
		return m.compileSlow(pattern)
	}
	m.mu.RUnlock()
	return re
}

func (m *Matcher) compileSlow(pattern string) *regexp.Regexp {
	re, err := regexp.Compile("(?i)" + pattern)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.bad[pattern] = struct{}{}
		return nil
	}
	m.compiled[pattern] = re
	return re
}

// Valid reports whether pattern is acceptable at write time: it must
// compile as a regular expression or be a bare domain string.
func Valid(pattern string) bool {
	if pattern == "" {
		return false
	}
	if bareDomainRe.MatchString(pattern) {
		return true
	}
	_, err := regexp.Compile("(?i)" + pattern)
	return err == nil
}
