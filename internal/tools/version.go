package tools

import (
	"regexp"
	"strconv"
	"strings"
)

// parseVersion returns the first capture group of pattern in output, or the
// whole match when the pattern has no group.
func parseVersion(pattern *regexp.Regexp, output string) string {
	if pattern == nil {
		return firstLine(strings.TrimSpace(output))
	}
	match := pattern.FindStringSubmatch(output)
	switch {
	case match == nil:
		return ""
	case len(match) > 1:
		return strings.TrimSpace(match[1])
	default:
		return strings.TrimSpace(match[0])
	}
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

// MeetsMinimum compares dotted numeric versions. Non-numeric runs separate
// components, so "3.28.1-rc2" reads as 3.28.1.2.
func MeetsMinimum(version, minimum string) bool {
	return meetsMinimum(version, minimum)
}

func meetsMinimum(version, minimum string) bool {
	if minimum == "" {
		return true
	}
	if version == "" {
		return false
	}

	vParts := numericParts(version)
	mParts := numericParts(minimum)
	for len(vParts) < len(mParts) {
		vParts = append(vParts, 0)
	}
	for len(mParts) < len(vParts) {
		mParts = append(mParts, 0)
	}
	for i := 0; i < len(vParts) && i < len(mParts); i++ {
		if vParts[i] > mParts[i] {
			return true
		}
		if vParts[i] < mParts[i] {
			return false
		}
	}
	return true
}

func numericParts(version string) []int {
	var parts []int
	current := strings.Builder{}
	for _, r := range version {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			val, _ := strconv.Atoi(current.String())
			parts = append(parts, val)
			current.Reset()
		}
	}
	if current.Len() > 0 {
		val, _ := strconv.Atoi(current.String())
		parts = append(parts, val)
	}
	return parts
}
