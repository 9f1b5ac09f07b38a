package selection

import "time"

// epochZero is substituted for any updated_at that fails to parse under any
// supported format, per §4.7's explicit fallback rule — never an error,
// since a cleanup tool must always be able to produce a total order.
var epochZero = time.Unix(0, 0).UTC()

// dateFormats mirrors the teacher's internal/filter/versions.go ParseDate
// fallback chain: date-only, RFC3339, RFC3339Nano, and the two GitHub API
// datetime shapes without a zone suffix.
var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseUpdatedAt parses s under the first format that matches, falling back
// to epochZero (rather than returning an error) so every version sorts
// somewhere instead of being dropped.
func parseUpdatedAt(s string) time.Time {
	if s == "" {
		return epochZero
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return epochZero
}
