package pq

import "fmt"

type ExpressionKind uint

const (
	ExpressionKindCurrent ExpressionKind = iota
	ExpressionKindField
	ExpressionKindArray
)

type Expression interface {
	Kind() ExpressionKind
	String() string
}

// Query selects part of a payload message. Only `.`, `.<field>` and
// `.<field>[]` are supported.
type Query struct {
	Elements []Expression
}

// IsList is true when the query yields every element of a repeated field.
func (q *Query) IsList() bool {
	return len(q.Elements) > 0 && q.Elements[len(q.Elements)-1].Kind() == ExpressionKindArray
}

func (q *Query) String() string {
	out := ""
	for _, element := range q.Elements {
		switch e := element.(type) {
		case *CurrentAccess:
			out += "."
		case *FieldAccess:
			out += e.Name
		case *ArrayAccess:
			out += "[]"
		}
	}
	return out
}

type CurrentAccess struct{}

func (e *CurrentAccess) Kind() ExpressionKind { return ExpressionKindCurrent }
func (e *CurrentAccess) String() string       { return "." }

type FieldAccess struct {
	Name string
}

func (e *FieldAccess) Kind() ExpressionKind { return ExpressionKindField }
func (e *FieldAccess) String() string       { return fmt.Sprintf("Field(%s)", e.Name) }

type ArrayAccess struct{}

func (e *ArrayAccess) Kind() ExpressionKind { return ExpressionKindArray }
func (e *ArrayAccess) String() string       { return "[]" }
