package gitlearn

import (
	"reflect"
	"testing"
)

func TestCategorizeFiles(t *testing.T) {
	byDomain := CategorizeFiles([]string{
		"src/components/Button.tsx",
		"src/api/users.go",
		"migrations/0042_add_index.sql",
		"docs/setup.md",
		"Dockerfile",
		"internal/store/store_test.go",
		"weird.bin",
	})

	want := map[string]string{
		"src/components/Button.tsx":    "frontend",
		"src/api/users.go":             "backend",
		"migrations/0042_add_index.sql": "database",
		"docs/setup.md":                "docs",
		"Dockerfile":                   "infra",
		"internal/store/store_test.go": "tests",
		"weird.bin":                    "other",
	}
	for path, domain := range want {
		found := false
		for _, p := range byDomain[domain] {
			if p == path {
				found = true
			}
		}
		if !found {
			t.Errorf("%s not bucketed into %s: %v", path, domain, byDomain)
		}
	}
}

func TestDomainsSorted(t *testing.T) {
	byDomain := CategorizeFiles([]string{"docs/a.md", "api/b.go", "Dockerfile"})
	got := Domains(byDomain)
	want := []string{"backend", "docs", "infra"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Domains = %v, want %v", got, want)
	}
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name    string
		message string
		files   []string
		want    []string
	}{
		{
			name:    "hook files plus hook keyword",
			message: "feat(hooks): add useSession hook",
			files:   []string{"src/hooks/useSession.ts"},
			want:    []string{"framework-hooks"},
		},
		{
			name:    "path hint without keyword does not fire",
			message: "chore: tidy formatting",
			files:   []string{"src/hooks/useSession.ts"},
			want:    nil,
		},
		{
			name:    "keyword-only rule",
			message: "fix: improve error handling around uploads",
			files:   []string{"src/upload.go"},
			want:    []string{"error-handling"},
		},
		{
			name:    "multiple rules, deduplicated",
			message: "feat(auth): new login route with session token",
			files:   []string{"src/api/routes/login.ts", "src/auth/session.ts"},
			want:    []string{"api-endpoint", "auth-flow"},
		},
		{
			name:    "nothing matches",
			message: "docs: fix typo",
			files:   []string{"README.md"},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectPatterns(tt.message, tt.files)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectPatterns = %v, want %v", got, tt.want)
			}
		})
	}
}
