package condition

import (
	"sort"
)

// Env is the set of active flags and key/value pairs a condition is
// evaluated against.
type Env struct {
	flags    map[string]bool
	values   map[string]map[string]bool
	matchAll map[string]bool
	denied   map[string]map[string]bool
}

// NewEnv creates an empty evaluation environment
func NewEnv() *Env {
	return &Env{
		flags:    make(map[string]bool),
		values:   make(map[string]map[string]bool),
		matchAll: make(map[string]bool),
		denied:   make(map[string]map[string]bool),
	}
}

// SetFlag activates a bare flag
func (e *Env) SetFlag(name string) *Env {
	e.flags[name] = true
	return e
}

// SetValue activates key = "value"
func (e *Env) SetValue(key, value string) *Env {
	set, ok := e.values[key]
	if !ok {
		set = make(map[string]bool)
		e.values[key] = set
	}
	set[value] = true
	return e
}

// EnableFeature is shorthand for SetValue(FeatureKey, name)
func (e *Env) EnableFeature(name string) *Env {
	return e.SetValue(FeatureKey, name)
}

// MatchAll makes every key = "..." test for key true. Documentation builds
// use it with FeatureKey to behave like an all-features build.
func (e *Env) MatchAll(key string) *Env {
	e.matchAll[key] = true
	return e
}

// Deny makes key = "value" false even under MatchAll. SetValue does not
// lift a denial.
func (e *Env) Deny(key, value string) *Env {
	set, ok := e.denied[key]
	if !ok {
		set = make(map[string]bool)
		e.denied[key] = set
	}
	set[value] = true
	return e
}

// HasFlag reports whether a bare flag is active
func (e *Env) HasFlag(name string) bool {
	return e.flags[name]
}

// HasValue reports whether key = "value" holds
func (e *Env) HasValue(key, value string) bool {
	if e.denied[key][value] {
		return false
	}
	if e.matchAll[key] {
		return true
	}
	return e.values[key][value]
}

// ActiveFlags returns the active bare flags, sorted
func (e *Env) ActiveFlags() []string {
	names := make([]string, 0, len(e.flags))
	for name := range e.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveValues returns the active values for key, sorted
func (e *Env) ActiveValues(key string) []string {
	values := make([]string, 0, len(e.values[key]))
	for v := range e.values[key] {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// Eval evaluates the condition. A nil env behaves as an empty one.
func (c *Condition) Eval(env *Env) bool {
	if env == nil {
		env = NewEnv()
	}
	return evalNode(c.root, env)
}

func evalNode(n Node, env *Env) bool {
	switch node := n.(type) {
	case *Flag:
		return env.HasFlag(node.Name)
	case *KeyValue:
		return env.HasValue(node.Key, node.Value)
	case *NotExpr:
		return !evalNode(node.Expr, env)
	case *ListExpr:
		if node.Op == OpAny {
			for _, arg := range node.Args {
				if evalNode(arg, env) {
					return true
				}
			}
			return false
		}
		for _, arg := range node.Args {
			if !evalNode(arg, env) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
