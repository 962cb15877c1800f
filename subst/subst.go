// Package subst rewrites templated expression blocks by substituting whole
// identifiers for caller-supplied replacement text. All substitutions in one
// call are applied simultaneously over the original token stream, so
// replacement text is never itself re-substituted, and identifier capture is
// detected before any rewriting happens.
package subst

import (
	"fmt"
	"sort"
	"strings"

	"tabq/token"
)

// Map maps placeholder identifiers to replacement source text. Entries are
// logically applied all at once; no entry ever sees another entry's output.
type Map map[string]string

// Policy selects what happens when a replacement identifier would be
// captured by an identifier already present in the block.
type Policy int

const (
	// Reject fails the rewrite with a ConflictError. This is the default:
	// silent renaming is itself a source of corner-case bugs.
	Reject Policy = iota

	// Rename gives the conflicting existing identifier a fresh name,
	// rewriting all its occurrences, before applying the substitution.
	Rename
)

func (p Policy) String() string {
	if p == Rename {
		return "rename"
	}
	return "reject"
}

// ConflictError reports a replacement identifier colliding with an
// identifier already bound in the block.
type ConflictError struct {
	Identifier string
	Policy     Policy
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("capture conflict: identifier %q already bound in block (policy: %s)", e.Identifier, e.Policy)
}

// Result is the outcome of a successful rewrite.
type Result struct {
	// Output is the rewritten block.
	Output string

	// Unused lists placeholders that never occurred in the block, in
	// lexicographic order. A no-op substitution is not an error, but
	// callers may want to report it.
	Unused []string

	// Renamed records fresh names assigned under the Rename policy,
	// keyed by the original identifier.
	Renamed map[string]string
}

// Option configures a rewrite.
type Option func(*config)

type config struct {
	policy Policy
}

// WithPolicy sets the capture policy. The default is Reject.
func WithPolicy(p Policy) Option {
	return func(c *config) { c.policy = p }
}

// Rewrite replaces every free occurrence of each mapped identifier in block
// with its replacement text. Only whole identifiers match; an identifier
// that merely contains a mapped name as a substring is untouched. For a
// fixed block, map, and options the output is byte-identical across calls.
func Rewrite(block string, m Map, opts ...Option) (Result, error) {
	cfg := config{policy: Reject}
	for _, opt := range opts {
		opt(&cfg)
	}

	tokens, err := token.Tokenize(block)
	if err != nil {
		return Result{}, err
	}
	bound := token.Identifiers(tokens)

	// Canonical processing order: lexicographic on placeholder name, so
	// any tie-breaking that affects generated fresh names is stable.
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var unused []string
	for _, name := range names {
		if !bound[name] {
			unused = append(unused, name)
		}
	}

	// Capture detection happens before any splicing, so a rejected
	// rewrite leaves no partial output behind.
	renames := make(map[string]string)
	taken := takenNames(bound, m)
	for _, name := range names {
		if !bound[name] {
			continue
		}
		repl := m[name]
		if !bareIdent(repl) || repl == name {
			continue
		}
		if _, inMap := m[repl]; inMap {
			// The colliding identifier is itself being substituted
			// away in the same pass; nothing is captured.
			continue
		}
		if bound[repl] && renames[repl] == "" {
			if cfg.policy == Reject {
				return Result{}, &ConflictError{Identifier: repl, Policy: cfg.policy}
			}
			fresh := freshName(repl, taken)
			taken[fresh] = true
			renames[repl] = fresh
		}
	}

	// One pass over the original token stream: every identifier span is
	// replaced at most once, by either its mapped text or its fresh name.
	var sb strings.Builder
	last := 0
	for _, t := range tokens {
		if t.Kind != token.Identifier {
			continue
		}
		repl, ok := m[t.Text]
		if !ok {
			repl, ok = renames[t.Text]
		}
		if !ok {
			continue
		}
		sb.WriteString(block[last:t.Pos])
		sb.WriteString(repl)
		last = t.End
	}
	sb.WriteString(block[last:])

	res := Result{Output: sb.String(), Unused: unused}
	if len(renames) > 0 {
		res.Renamed = renames
	}
	return res, nil
}

// bareIdent reports whether s is exactly one identifier token.
func bareIdent(s string) bool {
	tokens, err := token.Tokenize(s)
	if err != nil {
		return false
	}
	return len(tokens) == 2 && tokens[0].Kind == token.Identifier && tokens[0].Text == s
}

// takenNames collects every identifier a fresh name must avoid: all
// identifiers in the block, all placeholder names, and all identifiers
// occurring in replacement text.
func takenNames(bound map[string]bool, m Map) map[string]bool {
	taken := make(map[string]bool, len(bound)+len(m))
	for name := range bound {
		taken[name] = true
	}
	for name, repl := range m {
		taken[name] = true
		if toks, err := token.Tokenize(repl); err == nil {
			for _, t := range toks {
				if t.Kind == token.Identifier {
					taken[t.Text] = true
				}
			}
		}
	}
	return taken
}

// freshName appends a monotonically increasing suffix until the name is
// unused. The counter restarts per rewrite call, keeping output dependent
// only on the inputs.
func freshName(base string, taken map[string]bool) string {
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
