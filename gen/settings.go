package gen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"qaforge/types"
)

// BuildSettingsHash derives the stable fingerprint of a generation
// configuration. The canonical rendering is field-ordered, every string
// field is length-prefixed so field values cannot imitate field boundaries,
// and whitespace inside instructions is collapsed, so logically identical
// settings always hash to the same string regardless of how the request was
// written and distinct settings never share one. The value is an opaque
// equality key only.
func BuildSettingsHash(s types.GenerationSettings) string {
	var sb strings.Builder
	writeField(&sb, "model", strings.TrimSpace(s.Model))
	writeField(&sb, "temperature", strconv.FormatFloat(s.Temperature, 'g', -1, 64))
	writeField(&sb, "max_cases", strconv.Itoa(s.MaxCases))
	writeField(&sb, "instructions", collapseWhitespace(s.Instructions))
	writeField(&sb, "coverage", strings.TrimSpace(s.CoverageMode))
	writeField(&sb, "negative", strconv.FormatBool(s.IncludeNegative))
	writeField(&sb, "edge", strconv.FormatBool(s.IncludeEdgeCases))

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:16]
}

func writeField(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "%s=%d:%s|", name, len(value), value)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
