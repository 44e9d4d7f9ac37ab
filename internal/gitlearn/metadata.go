package gitlearn

import "strings"

// Metadata block delimiters. A commit may embed structured learning hints
// in its body between these markers, one "key: value" line per field.
const (
	blockStart = "--- lorekeep ---"
	blockEnd   = "--- end ---"
)

// Recognized metadata keys. Unknown keys inside the block are kept too,
// so a newer writer does not break an older reader.
const (
	metaError        = "error"
	metaErrorType    = "error-type"
	metaSolution     = "solution"
	metaSolutionCode = "solution-code"
	metaPattern      = "pattern"
	metaPatternType  = "pattern-type"
	metaCategory     = "category"
	metaDescription  = "description"
	metaBreaking     = "breaking"
	metaTags         = "tags"
)

// ExtractMetadata finds the delimited metadata block in a commit message and
// parses its labeled lines. Absence of the block is normal: ok is false and
// the map is nil. A start marker with no end marker is treated as no block.
func ExtractMetadata(message string) (map[string]string, bool) {
	lines := strings.Split(message, "\n")

	start := -1
	end := -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case blockStart:
			if start == -1 {
				start = i
			}
		case blockEnd:
			if start != -1 && end == -1 {
				end = i
			}
		}
	}
	if start == -1 || end == -1 {
		return nil, false
	}

	fields := make(map[string]string)
	for _, line := range lines[start+1 : end] {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}
	return fields, true
}

// splitTags turns a comma-separated metadata value into a clean tag list.
func splitTags(value string) []string {
	var tags []string
	for _, t := range strings.Split(value, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
