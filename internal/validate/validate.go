package validate

import "fmt"

// Text field length limits shared by the API handlers and the limits
// endpoint.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	MaxMediaURLLength    = 500
	MaxLabelLength       = 255
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func MediaURL(s string) string    { return checkLen(s, MaxMediaURLLength, "media URL") }
func Label(s string) string       { return checkLen(s, MaxLabelLength, "label") }

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":       MaxTitleLength,
		"description": MaxDescriptionLength,
		"mediaURL":    MaxMediaURLLength,
		"label":       MaxLabelLength,
	}
}
