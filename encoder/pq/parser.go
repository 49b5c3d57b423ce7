package pq

import (
	"fmt"
	"regexp"
	"strings"
)

type ParserError struct {
	Query   string
	Message string
}

func (e *ParserError) Error() string {
	return fmt.Sprintf("%s on %q", e.Message, e.Query)
}

var fieldRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func Parse(in string) (*Query, error) {
	if !strings.HasPrefix(in, ".") {
		return nil, newParserError(in, "query must start with current object accessor '.'")
	}

	exprs := []Expression{&CurrentAccess{}}
	if in == "." {
		return &Query{Elements: exprs}, nil
	}

	fieldName, isArray := strings.CutSuffix(in[1:], "[]")
	if !fieldRegex.MatchString(fieldName) {
		return nil, newParserError(in, "query must have a single field name after accessor '.'")
	}

	exprs = append(exprs, &FieldAccess{Name: fieldName})
	if isArray {
		exprs = append(exprs, &ArrayAccess{})
	}

	return &Query{Elements: exprs}, nil
}

func newParserError(in string, reason string) *ParserError {
	return &ParserError{Query: in, Message: reason}
}
