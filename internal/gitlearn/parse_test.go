package gitlearn

import (
	"reflect"
	"testing"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ParsedMessage
	}{
		{
			name: "full grammar with identity tag",
			in:   "fix(auth): resolve token refresh [MOD]",
			want: ParsedMessage{Type: "fix", Module: "auth", Description: "resolve token refresh", Identity: "MOD", Parsed: true},
		},
		{
			name: "no scope",
			in:   "feat: add csv export",
			want: ParsedMessage{Type: "feat", Description: "add csv export", Parsed: true},
		},
		{
			name: "breaking marker",
			in:   "refactor(api)!: drop v1 endpoints",
			want: ParsedMessage{Type: "refactor", Module: "api", Description: "drop v1 endpoints", Breaking: true, Parsed: true},
		},
		{
			name: "subject only from multi-line message",
			in:   "fix(db): retry on lock timeout\n\nlong body here",
			want: ParsedMessage{Type: "fix", Module: "db", Description: "retry on lock timeout", Parsed: true},
		},
		{
			name: "unparseable is not an error",
			in:   "WIP stuff, do not merge",
			want: ParsedMessage{Description: "WIP stuff, do not merge"},
		},
		{
			name: "nested path scope",
			in:   "chore(pkg/storage): tidy imports",
			want: ParsedMessage{Type: "chore", Module: "pkg/storage", Description: "tidy imports", Parsed: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMessage(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseMessage(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractMetadata(t *testing.T) {
	msg := "fix(auth): handle expired sessions\n\n" +
		"--- lorekeep ---\n" +
		"error: session expired unexpectedly on refresh\n" +
		"error-type: auth\n" +
		"solution: re-issue the refresh token before expiry\n" +
		"tags: auth, sessions\n" +
		"x-experimental: kept\n" +
		"--- end ---\n"

	meta, ok := ExtractMetadata(msg)
	if !ok {
		t.Fatal("expected metadata block")
	}
	if meta[metaError] != "session expired unexpectedly on refresh" {
		t.Errorf("error = %q", meta[metaError])
	}
	if meta[metaErrorType] != "auth" {
		t.Errorf("error-type = %q", meta[metaErrorType])
	}
	if meta[metaSolution] != "re-issue the refresh token before expiry" {
		t.Errorf("solution = %q", meta[metaSolution])
	}
	if meta["x-experimental"] != "kept" {
		t.Error("unknown keys should be preserved")
	}
	if got := splitTags(meta[metaTags]); len(got) != 2 || got[0] != "auth" || got[1] != "sessions" {
		t.Errorf("tags = %v", got)
	}
}

func TestExtractMetadataAbsent(t *testing.T) {
	if _, ok := ExtractMetadata("feat: plain commit with no block"); ok {
		t.Error("expected no metadata block")
	}
}

func TestExtractMetadataUnterminatedBlock(t *testing.T) {
	msg := "fix: something\n\n--- lorekeep ---\nerror: dangling\n"
	if _, ok := ExtractMetadata(msg); ok {
		t.Error("start marker without end marker should yield no block")
	}
}

func TestExtractMetadataSkipsMalformedLines(t *testing.T) {
	msg := "--- lorekeep ---\n" +
		"not a labeled line\n" +
		"solution: still parsed\n" +
		"--- end ---"
	meta, ok := ExtractMetadata(msg)
	if !ok {
		t.Fatal("expected metadata block")
	}
	if len(meta) != 1 || meta[metaSolution] != "still parsed" {
		t.Errorf("meta = %v", meta)
	}
}
