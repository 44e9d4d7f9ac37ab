package solutions

import (
	"context"
	"strings"
)

// builtinSignature is one entry in the well-known error table. Signatures
// are matched as case-insensitive substrings of the raw message, so common
// errors resolve even on an empty store.
type builtinSignature struct {
	signature string
	errorType string
	advice    string
	steps     []string
}

var builtins = []builtinSignature{
	{
		signature: "cannot read properties of null",
		errorType: "runtime",
		advice:    "A value expected to be an object is null. Guard the access or fix the upstream producer that should have set it.",
		steps: []string{
			"Identify which expression evaluates to null",
			"Add a null check or optional chaining at the access site",
			"Trace why the producer returned null and fix it if unexpected",
		},
	},
	{
		signature: "cannot read properties of undefined",
		errorType: "runtime",
		advice:    "A value expected to be an object is undefined, usually a missing initialization or a misspelled property.",
		steps: []string{
			"Check the spelling of the property chain",
			"Verify the value is initialized before first use",
		},
	},
	{
		signature: "is not a function",
		errorType: "runtime",
		advice:    "The call target is not callable. Commonly a default-vs-named import mixup or an API that changed shape.",
		steps: []string{
			"Inspect the imported symbol at the call site",
			"Check the module's export style matches the import",
		},
	},
	{
		signature: "module not found",
		errorType: "build",
		advice:    "A dependency or path cannot be resolved. Install the package or fix the import path casing.",
		steps: []string{
			"Reinstall dependencies",
			"Check the import path against the file system, including case",
		},
	},
	{
		signature: "eaddrinuse",
		errorType: "infra",
		advice:    "The port is already bound by another process. Stop the other process or move this one to a free port.",
		steps: []string{
			"Find the process holding the port",
			"Stop it, or configure a different port",
		},
	},
	{
		signature: "econnrefused",
		errorType: "infra",
		advice:    "Nothing is listening at the target address. The dependency service is down or the address is wrong.",
		steps: []string{
			"Verify the dependency service is running",
			"Check host and port configuration",
		},
	},
	{
		signature: "blocked by cors policy",
		errorType: "http",
		advice:    "The server does not allow the requesting origin. Configure CORS on the server; the fix is never client-side.",
		steps: []string{
			"Add the origin to the server's allowed list",
			"Ensure preflight (OPTIONS) requests are handled",
		},
	},
	{
		signature: "hydration",
		errorType: "frontend",
		advice:    "Server-rendered markup differs from the client render. Remove non-deterministic values (dates, random IDs) from the first render.",
		steps: []string{
			"Find markup that depends on time, randomness, or browser-only state",
			"Defer it to a client-side effect",
		},
	},
	{
		signature: "type error",
		errorType: "types",
		advice:    "A value's type does not match its declared or inferred type. Fix the value or the declaration, not with a cast.",
	},
	{
		signature: "deadlock",
		errorType: "concurrency",
		advice:    "Two or more operations wait on each other. Establish a consistent lock ordering or reduce the critical section.",
	},
}

// Suggestion is the result of AutoSuggest: either a built-in hint or a
// ranked set of learned matches.
type Suggestion struct {
	Source    string   `json:"source"` // "builtin" or "learned"
	ErrorType string   `json:"error_type,omitempty"`
	Advice    string   `json:"advice,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	Matches   []Match  `json:"matches,omitempty"`
}

// AutoSuggest first consults the built-in table of well-known error
// signatures, then falls back to the learned store. The two-tier lookup
// means common errors resolve even before anything has been learned.
func (m *Matcher) AutoSuggest(ctx context.Context, errorMessage string) (*Suggestion, error) {
	lower := strings.ToLower(errorMessage)
	for _, b := range builtins {
		if strings.Contains(lower, b.signature) {
			return &Suggestion{
				Source:    "builtin",
				ErrorType: b.errorType,
				Advice:    b.advice,
				Steps:     b.steps,
			}, nil
		}
	}

	matches, err := m.FindSolutions(ctx, Query{ErrorMessage: errorMessage})
	if err != nil {
		return nil, err
	}
	return &Suggestion{Source: "learned", Matches: matches}, nil
}
