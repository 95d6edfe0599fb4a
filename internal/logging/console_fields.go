package logging

import "strings"

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// infoHighlightKeys orders the fields shown under info lines.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldTitle,
	FieldSource,
	"status",
	"match_status",
	"matched_title",
	"confidence",
	"artwork",
	"library",
	"records",
	"applied",
	"skipped",
	"failed",
	"total",
	"done",
	"errors",
	"cancelled",
	"error",
	FieldErrorKind,
	FieldErrorHint,
	FieldImpact,
	"reason",
	"duration",
}

// selectInfoFields returns the fields worth showing at info level and how
// many were left out.
func selectInfoFields(attrs []kv) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, infoAttrLimit)
	hidden := 0
	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if used[idx] || attr.key != key {
				continue
			}
			used[idx] = true
			value := formatValue(attr.value)
			if len(result) < infoAttrLimit && !shouldHideInfoValue(key, value) {
				result = append(result, infoField{label: displayLabel(key), value: value})
				continue
			}
			hidden++
		}
	}
	for idx, attr := range attrs {
		if used[idx] || skipInfoKey(attr.key) {
			continue
		}
		if len(result) < infoAttrLimit && !isDebugOnlyKey(attr.key) {
			value := formatValue(attr.value)
			if !shouldHideInfoValue(attr.key, value) {
				result = append(result, infoField{label: displayLabel(attr.key), value: value})
				continue
			}
		}
		hidden++
	}
	return result, hidden
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldWorker, FieldURL, FieldSessionID:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case "image_url", "rating_key", "section_id", "user_agent", "viewport", "temp_file":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func shouldHideInfoValue(key, value string) bool {
	if key == "error" {
		return false
	}
	return len(value) > 120
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorHint:
		return "Hint"
	case FieldErrorKind:
		return "Error Kind"
	case "match_status":
		return "Match"
	case "matched_title":
		return "Matched"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
	}
	return strings.Join(parts, " ")
}
