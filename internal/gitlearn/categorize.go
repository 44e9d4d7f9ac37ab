package gitlearn

import (
	"sort"
	"strings"
)

// domainRules bucket changed files into coarse domains. Rules are evaluated
// in order and the first match wins, so the more specific entries come
// first. Matching is by path substring or suffix, always lowercased.
var domainRules = []struct {
	domain   string
	substrs  []string
	suffixes []string
}{
	{domain: "tests", substrs: []string{"__tests__/", "/test/", "/tests/", ".test.", ".spec."}, suffixes: []string{"_test.go"}},
	{domain: "docs", substrs: []string{"docs/", "doc/"}, suffixes: []string{".md", ".rst", ".adoc"}},
	{domain: "database", substrs: []string{"migrations/", "migration/", "prisma/", "/db/", "schema."}, suffixes: []string{".sql"}},
	{domain: "infra", substrs: []string{"dockerfile", "docker-compose", ".github/workflows/", "terraform/", "k8s/", "helm/", "deploy/"}, suffixes: []string{".tf"}},
	{domain: "config", substrs: []string{".env"}, suffixes: []string{".yaml", ".yml", ".toml", ".ini", ".json"}},
	{domain: "frontend", substrs: []string{"src/components/", "src/pages/", "src/app/", "public/", "styles/"}, suffixes: []string{".tsx", ".jsx", ".vue", ".svelte", ".css", ".scss", ".html"}},
	{domain: "backend", substrs: []string{"src/api/", "src/server/", "server/", "api/", "internal/", "cmd/", "handlers/", "services/"}, suffixes: []string{".go", ".py", ".rb", ".java", ".rs"}},
	{domain: "tooling", substrs: []string{"scripts/", "tools/", "makefile"}, suffixes: []string{".sh"}},
}

// CategorizeFiles buckets changed file paths into coarse domains.
// Pure function of the path list; paths matching no rule land in "other".
func CategorizeFiles(paths []string) map[string][]string {
	out := make(map[string][]string)
	for _, p := range paths {
		d := categorize(p)
		out[d] = append(out[d], p)
	}
	return out
}

func categorize(path string) string {
	lower := strings.ToLower(path)
	for _, rule := range domainRules {
		for _, s := range rule.substrs {
			if strings.Contains(lower, s) {
				return rule.domain
			}
		}
		for _, suf := range rule.suffixes {
			if strings.HasSuffix(lower, suf) {
				return rule.domain
			}
		}
	}
	return "other"
}

// Domains returns the sorted domain names present in a categorization.
func Domains(byDomain map[string][]string) []string {
	names := make([]string, 0, len(byDomain))
	for d := range byDomain {
		names = append(names, d)
	}
	sort.Strings(names)
	return names
}
