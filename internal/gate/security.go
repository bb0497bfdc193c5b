package gate

import (
	"fmt"
	"sort"
	"strings"
)

// The security validator walks an untrusted payload tree depth-first and
// consults a set of pluggable checks at every node. The first violation
// anywhere aborts the whole validation; there is no partial success.

// MapKey marks a mapping key during the walk so checks can vet key names
// separately from string values.
type MapKey string

// Check vets one structural aspect of an untrusted payload. A check is
// consulted at every node and ignores node kinds it does not cover. Returning
// a non-nil error (conventionally a SecurityError) aborts the walk.
type Check interface {
	Name() string
	Inspect(node any, depth int) error
}

// ValidatorConfig carries the tunable limits for the default check set.
// Zero values select the defaults.
type ValidatorConfig struct {
	MaxDepth     int // maximum nesting depth, default 10
	MaxStringLen int // maximum string leaf length, default 10000
	MaxListLen   int // maximum list length, default 1000
}

const (
	defaultMaxDepth     = 10
	defaultMaxStringLen = 10000
	defaultMaxListLen   = 1000
)

// denyPatterns covers code-execution, script-injection, path-traversal and
// destructive shell/SQL markers. Matched case-insensitively as substrings.
// This is a heuristic blacklist, not a sound security boundary.
var denyPatterns = []string{
	"__import__", "eval", "exec", "compile", "open", "file",
	"<script", "</script>", "javascript:", "data:",
	"../", "..\\", "/etc/", "c:\\", "cmd.exe", "powershell",
	"rm -rf", "del /", "format c:", "drop table",
}

// Validator rejects payloads containing unsafe constructs, independent of
// what the handler intends to do with them.
type Validator struct {
	checks []Check
}

// NewValidator builds a validator with the default capability set: depth
// limiter, content scanner, key guard and list limiter.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.MaxStringLen <= 0 {
		cfg.MaxStringLen = defaultMaxStringLen
	}
	if cfg.MaxListLen <= 0 {
		cfg.MaxListLen = defaultMaxListLen
	}
	return NewValidatorWithChecks(
		&depthLimit{max: cfg.MaxDepth},
		&contentScan{patterns: denyPatterns, maxLen: cfg.MaxStringLen},
		&keyGuard{},
		&listLimit{max: cfg.MaxListLen},
	)
}

// NewValidatorWithChecks builds a validator from an explicit check set, in
// consultation order. Individual checks can be swapped without touching the
// pipeline's ordering contract.
func NewValidatorWithChecks(checks ...Check) *Validator {
	return &Validator{checks: checks}
}

// Validate walks payload depth-first and returns the first violation, or nil
// when every check passes at every node.
func (v *Validator) Validate(payload any) error {
	return v.walk(payload, 0)
}

func (v *Validator) walk(node any, depth int) error {
	for _, c := range v.checks {
		if err := c.Inspect(node, depth); err != nil {
			return err
		}
	}
	switch t := node.(type) {
	case map[string]any:
		// Sorted keys keep the traversal deterministic; JSON objects carry
		// no document order once decoded.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, c := range v.checks {
				if err := c.Inspect(MapKey(k), depth); err != nil {
					return err
				}
			}
			if err := v.walk(t[k], depth+1); err != nil {
				return err
			}
		}
	case []any:
		// Length was vetted by the list limiter before descending.
		for _, item := range t {
			if err := v.walk(item, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// depthLimit fails closed when nesting exceeds the configured maximum,
// preventing pathological nesting from exhausting the stack.
type depthLimit struct {
	max int
}

func (d *depthLimit) Name() string { return "depth_limit" }

func (d *depthLimit) Inspect(_ any, depth int) error {
	if depth > d.max {
		return NewSecurityError("Input structure too deep")
	}
	return nil
}

// contentScan matches string leaves against the denylist and caps their
// length. First match fails closed; the matched pattern is named in the
// error for logging but never reaches the client.
type contentScan struct {
	patterns []string
	maxLen   int
}

func (s *contentScan) Name() string { return "content_scan" }

func (s *contentScan) Inspect(node any, _ int) error {
	str, ok := node.(string)
	if !ok {
		return nil
	}
	lower := strings.ToLower(str)
	for _, p := range s.patterns {
		if strings.Contains(lower, p) {
			return NewSecurityError(fmt.Sprintf("Dangerous pattern detected: %s", p))
		}
	}
	if len(str) > s.maxLen {
		return NewSecurityError("Input string too long")
	}
	return nil
}

// keyGuard rejects mapping keys that act as trust-boundary bypass vectors in
// dynamically-dispatched object systems, regardless of target runtime.
type keyGuard struct{}

func (k *keyGuard) Name() string { return "key_guard" }

func (k *keyGuard) Inspect(node any, _ int) error {
	key, ok := node.(MapKey)
	if !ok {
		return nil
	}
	name := string(key)
	if strings.HasPrefix(name, "__") || name == "constructor" || name == "prototype" {
		return NewSecurityError(fmt.Sprintf("Dangerous key name: %s", name))
	}
	return nil
}

// listLimit fails closed on oversized lists before any element is visited.
type listLimit struct {
	max int
}

func (l *listLimit) Name() string { return "list_limit" }

func (l *listLimit) Inspect(node any, _ int) error {
	list, ok := node.([]any)
	if !ok {
		return nil
	}
	if len(list) > l.max {
		return NewSecurityError("Array too large")
	}
	return nil
}
