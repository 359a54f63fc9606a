package models

import "strings"

// ParseTag cleans a tag typed by a user.
//
// Examples:
//   - "marketing" -> "marketing"
//   - "  #Marketing " -> "marketing"
//   - "##seo" -> "seo"
//   - "#" -> ""
func ParseTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	return strings.ToLower(strings.TrimSpace(tag))
}

// FormatTag formats a tag for display, e.g. "marketing" -> "#marketing".
// Tags already starting with "#" are not prefixed again.
func FormatTag(tag string) string {
	return "#" + strings.TrimLeft(tag, "#")
}

// AxisTags builds the default tag list of a record from its axis values.
// Empty values are skipped and the rest are lower-cased.
func AxisTags(persona, theme, postType string) []string {
	tags := make([]string, 0, 3)
	for _, v := range []string{persona, theme, postType} {
		if v == "" {
			continue
		}
		tags = append(tags, strings.ToLower(v))
	}
	return tags
}

// HasTag reports whether tags contains tag exactly.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
