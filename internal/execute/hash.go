// Package execute orchestrates task execution: building AI requests,
// consulting the result cache and recording usage statistics.
package execute

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// CacheKey derives the result-cache key for one execution. The input
// fields are joined with a delimiter and run through a 32-bit rolling
// hash (h = (h<<5) - h + unit, with signed 32-bit overflow over UTF-16
// code units), rendered as the absolute value in base 36. Equal inputs
// always produce equal keys; collisions across distinct inputs are
// tolerated by cache semantics.
func CacheKey(taskID, domain, url, title, sanitizedInput string) string {
	joined := strings.Join([]string{taskID, domain, url, title, sanitizedInput}, "|")

	var h int32
	for _, unit := range utf16.Encode([]rune(joined)) {
		h = (h << 5) - h + int32(unit)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
