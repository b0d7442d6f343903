package condition

import (
	"strconv"
	"strings"
)

// Node is the interface for all condition AST nodes
type Node interface {
	String() string
	nodeType() string
}

// Flag is a bare flag atom, e.g. test or unix
type Flag struct {
	Name string
}

func (f *Flag) String() string { return f.Name }

func (f *Flag) nodeType() string { return "Flag" }

// KeyValue is a key/value atom, e.g. feature = "nightly"
type KeyValue struct {
	Key   string
	Value string
}

func (kv *KeyValue) String() string {
	return kv.Key + " = " + strconv.Quote(kv.Value)
}

func (kv *KeyValue) nodeType() string { return "KeyValue" }

// ListExpr combines its arguments with any (OR) or all (AND)
type ListExpr struct {
	Op   string // "any" or "all"
	Args []Node
}

func (l *ListExpr) String() string {
	args := make([]string, len(l.Args))
	for i, arg := range l.Args {
		args[i] = arg.String()
	}
	return l.Op + "(" + strings.Join(args, ", ") + ")"
}

func (l *ListExpr) nodeType() string { return "ListExpr" }

// NotExpr negates a single predicate
type NotExpr struct {
	Expr Node
}

func (n *NotExpr) String() string {
	return OpNot + "(" + n.Expr.String() + ")"
}

func (n *NotExpr) nodeType() string { return "NotExpr" }

// Combinator names
const (
	OpAny = "any"
	OpAll = "all"
	OpNot = "not"
)

// FeatureKey is the key used by feature atoms: feature = "name"
const FeatureKey = "feature"

// Condition is a parsed condition expression. It is immutable once
// constructed; the nodes reachable through Root must not be modified.
type Condition struct {
	root Node
	raw  string
}

// Feature returns the condition feature = "name"
func Feature(name string) *Condition {
	kv := &KeyValue{Key: FeatureKey, Value: name}
	return &Condition{root: kv, raw: kv.String()}
}

// Root returns the root node
func (c *Condition) Root() Node {
	return c.root
}

// Raw returns the text the condition was parsed from
func (c *Condition) Raw() string {
	return c.raw
}

// String returns the canonical form. Parsing it yields an equal condition.
func (c *Condition) String() string {
	if c == nil || c.root == nil {
		return ""
	}
	return c.root.String()
}

// Equal reports whether two conditions are structurally identical
func (c *Condition) Equal(other *Condition) bool {
	if c == nil || other == nil {
		return c == other
	}
	return nodesEqual(c.root, other.root)
}

func nodesEqual(a, b Node) bool {
	switch x := a.(type) {
	case *Flag:
		y, ok := b.(*Flag)
		return ok && x.Name == y.Name
	case *KeyValue:
		y, ok := b.(*KeyValue)
		return ok && x.Key == y.Key && x.Value == y.Value
	case *NotExpr:
		y, ok := b.(*NotExpr)
		return ok && nodesEqual(x.Expr, y.Expr)
	case *ListExpr:
		y, ok := b.(*ListExpr)
		if !ok || x.Op != y.Op || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !nodesEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Flags returns the distinct bare flag names referenced, in first-seen order
func (c *Condition) Flags() []string {
	var names []string
	seen := make(map[string]bool)
	walk(c.root, func(n Node) {
		if f, ok := n.(*Flag); ok && !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	})
	return names
}

// Values returns the distinct values tested for key, in first-seen order
func (c *Condition) Values(key string) []string {
	var values []string
	seen := make(map[string]bool)
	walk(c.root, func(n Node) {
		if kv, ok := n.(*KeyValue); ok && kv.Key == key && !seen[kv.Value] {
			seen[kv.Value] = true
			values = append(values, kv.Value)
		}
	})
	return values
}

// Features returns the feature names referenced by the condition
func (c *Condition) Features() []string {
	return c.Values(FeatureKey)
}

func walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch node := n.(type) {
	case *ListExpr:
		for _, arg := range node.Args {
			walk(arg, fn)
		}
	case *NotExpr:
		walk(node.Expr, fn)
	}
}
