package gitlearn

import "strings"

// patternRules map (path hint, message keywords) pairs to pattern names.
// A rule fires when any changed file contains one of its path hints AND the
// message contains one of its keywords; an empty hint list means "any".
// Declarative so the battery can be tested and extended without touching
// the evaluation loop.
var patternRules = []struct {
	name     string
	paths    []string
	keywords []string
}{
	{name: "framework-hooks", paths: []string{"hooks/", "use"}, keywords: []string{"hook"}},
	{name: "api-endpoint", paths: []string{"api/", "routes/", "handlers/"}, keywords: []string{"endpoint", "route", "api"}},
	{name: "database-migration", paths: []string{"migrations/", ".sql", "prisma/"}, keywords: []string{"migration", "schema", "table"}},
	{name: "auth-flow", paths: []string{"auth"}, keywords: []string{"auth", "login", "token", "session"}},
	{name: "testing", paths: []string{".test.", ".spec.", "_test.go", "__tests__/"}, keywords: []string{"test", "coverage", "fixture"}},
	{name: "ci-pipeline", paths: []string{".github/workflows/", ".gitlab-ci", "jenkinsfile"}, keywords: []string{"ci", "pipeline", "workflow", "build"}},
	{name: "containerization", paths: []string{"dockerfile", "docker-compose"}, keywords: []string{"docker", "container", "image"}},
	{name: "config-management", paths: []string{".env", "config"}, keywords: []string{"config", "environment", "setting"}},
	{name: "error-handling", paths: nil, keywords: []string{"error handling", "try/catch", "recover", "retry"}},
	{name: "state-management", paths: []string{"store/", "state/", "reducers/"}, keywords: []string{"state", "store", "reducer"}},
}

// DetectPatterns runs the rule battery over one commit's message and changed
// files, returning the matched pattern names with duplicates removed.
func DetectPatterns(message string, files []string) []string {
	msg := strings.ToLower(message)
	lowered := make([]string, len(files))
	for i, f := range files {
		lowered[i] = strings.ToLower(f)
	}

	seen := make(map[string]bool)
	var patterns []string
	for _, rule := range patternRules {
		if !anyPathMatches(lowered, rule.paths) {
			continue
		}
		if !anyKeywordMatches(msg, rule.keywords) {
			continue
		}
		if !seen[rule.name] {
			seen[rule.name] = true
			patterns = append(patterns, rule.name)
		}
	}
	return patterns
}

func anyPathMatches(files, hints []string) bool {
	if len(hints) == 0 {
		return true
	}
	for _, f := range files {
		for _, h := range hints {
			if strings.Contains(f, h) {
				return true
			}
		}
	}
	return false
}

func anyKeywordMatches(msg string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}
