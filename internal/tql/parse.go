package tql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/tuannm99/novagrid/internal/native"
)

// parseIdent validates a container or column name.
// Rules:
//   - exactly one token
//   - first char: letter or '_'
//   - rest: letter/digit/'_'
func parseIdent(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing identifier")
	}

	parts := strings.Fields(s)
	if len(parts) != 1 {
		return "", fmt.Errorf("invalid identifier %q", s)
	}
	id := parts[0]

	for i, r := range id {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return "", fmt.Errorf("invalid identifier %q", id)
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return "", fmt.Errorf("invalid identifier %q", id)
		}
	}

	return id, nil
}

// Parse parses a single TQL statement. A trailing ';' is optional.
func Parse(text string) (Statement, error) {
	s := strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(text)
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, fmt.Errorf("empty statement")
	}

	up := strings.ToUpper(s)

	switch {
	case strings.HasPrefix(up, "EXPLAIN ANALYZE "):
		return parseExplain(s[len("EXPLAIN ANALYZE "):], true)
	case strings.HasPrefix(up, "EXPLAIN "):
		return parseExplain(s[len("EXPLAIN "):], false)
	case strings.HasPrefix(up, "SELECT "):
		return parseSelect(s)
	default:
		return nil, fmt.Errorf("unsupported statement: %q", text)
	}
}

func parseExplain(rest string, analyze bool) (Statement, error) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(strings.ToUpper(rest), "SELECT ") {
		return nil, fmt.Errorf("EXPLAIN requires a SELECT statement")
	}
	sel, err := parseSelect(rest)
	if err != nil {
		return nil, err
	}
	return &ExplainStmt{Analyze: analyze, Select: sel, Text: rest}, nil
}

func parseSelect(sql string) (*SelectStmt, error) {
	// "SELECT <proj> [FROM c] [WHERE ...] [ORDER BY col [ASC|DESC]] [LIMIT n [OFFSET m]]"
	rest := strings.TrimSpace(sql[len("SELECT "):])

	rest, limitPart := splitKeyword(rest, "LIMIT")
	rest, orderPart := splitKeyword(rest, "ORDER BY")
	rest, wherePart := splitKeyword(rest, "WHERE")
	projPart, fromPart := splitKeyword(rest, "FROM")

	stmt := &SelectStmt{Limit: -1}

	agg, err := parseProjection(projPart)
	if err != nil {
		return nil, err
	}
	stmt.Aggregate = agg

	if fromPart != "" {
		name, err := parseIdent(fromPart)
		if err != nil {
			return nil, fmt.Errorf("invalid FROM: %w", err)
		}
		stmt.Container = name
	}

	if wherePart != "" {
		w, err := parseWhere(wherePart)
		if err != nil {
			return nil, err
		}
		stmt.Where = w
	}

	if orderPart != "" {
		ob, err := parseOrderBy(orderPart)
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = ob
	}

	if limitPart != "" {
		if err := parseLimit(limitPart, stmt); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

func parseProjection(s string) (*Aggregate, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return nil, nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("only * or an aggregation is supported in the select list, got %q", s)
	}

	fn := AggFunc(strings.ToUpper(strings.TrimSpace(s[:open])))
	arg := strings.TrimSpace(s[open+1 : len(s)-1])

	switch fn {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
	default:
		return nil, fmt.Errorf("unsupported aggregation %q", fn)
	}

	if arg == "*" {
		if fn != AggCount {
			return nil, fmt.Errorf("%s(*) is not supported", fn)
		}
		return &Aggregate{Func: fn}, nil
	}

	col, err := parseIdent(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid %s argument: %w", fn, err)
	}
	return &Aggregate{Func: fn, Column: col}, nil
}

func parseWhere(s string) (Expr, error) {
	ors := splitAllKeyword(s, "OR")
	var out Expr
	for _, part := range ors {
		e, err := parseAnd(part)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = e
			continue
		}
		out = &LogicalExpr{Op: OpOr, Left: out, Right: e}
	}
	return out, nil
}

func parseAnd(s string) (Expr, error) {
	ands := splitAllKeyword(s, "AND")
	var out Expr
	for _, part := range ands {
		e, err := parseCompare(part)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = e
			continue
		}
		out = &LogicalExpr{Op: OpAnd, Left: out, Right: e}
	}
	return out, nil
}

var cmpOps = []string{"<=", ">=", "!=", "<>", "=", "<", ">"}

func parseCompare(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	idx, op := findOperator(s)
	if idx < 0 {
		return nil, fmt.Errorf("invalid condition %q: want <col> <op> <literal>", s)
	}

	col, err := parseIdent(s[:idx])
	if err != nil {
		return nil, fmt.Errorf("invalid WHERE column: %w", err)
	}

	lit, err := parseLiteral(strings.TrimSpace(s[idx+len(op):]))
	if err != nil {
		return nil, err
	}

	cmp := CmpOp(op)
	if op == "<>" {
		cmp = OpNe
	}
	return &CompareExpr{Column: col, Op: cmp, Value: &LiteralExpr{Value: lit}}, nil
}

// findOperator returns the first comparison operator outside quotes.
func findOperator(s string) (int, string) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if inQuote {
			continue
		}
		for _, op := range cmpOps {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
	}
	return -1, ""
}

func parseOrderBy(s string) (*OrderBy, error) {
	toks := strings.Fields(s)
	if len(toks) == 0 || len(toks) > 2 {
		return nil, fmt.Errorf("invalid ORDER BY %q", s)
	}
	col, err := parseIdent(toks[0])
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER BY column: %w", err)
	}
	ob := &OrderBy{Column: col}
	if len(toks) == 2 {
		switch strings.ToUpper(toks[1]) {
		case "ASC":
		case "DESC":
			ob.Desc = true
		default:
			return nil, fmt.Errorf("invalid ORDER BY direction %q", toks[1])
		}
	}
	return ob, nil
}

func parseLimit(s string, stmt *SelectStmt) error {
	limitPart, offsetPart := splitKeyword(s, "OFFSET")
	n, err := strconv.ParseInt(strings.TrimSpace(limitPart), 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid LIMIT %q", limitPart)
	}
	stmt.Limit = n

	if offsetPart != "" {
		m, err := strconv.ParseInt(strings.TrimSpace(offsetPart), 10, 64)
		if err != nil || m < 0 {
			return fmt.Errorf("invalid OFFSET %q", offsetPart)
		}
		stmt.Offset = m
	}
	return nil
}

func parseLiteral(rv string) (any, error) {
	up := strings.ToUpper(rv)

	if up == "NULL" {
		return nil, nil
	}

	if up == "TRUE" {
		return true, nil
	}
	if up == "FALSE" {
		return false, nil
	}

	// STRING (single quotes, '' escapes a quote)
	if len(rv) >= 2 && rv[0] == '\'' && rv[len(rv)-1] == '\'' {
		return strings.ReplaceAll(rv[1:len(rv)-1], "''", "'"), nil
	}

	// TIMESTAMP('2024-01-01T00:00:00.000Z')
	if strings.HasPrefix(up, "TIMESTAMP(") && strings.HasSuffix(rv, ")") {
		inner := strings.TrimSpace(rv[len("TIMESTAMP(") : len(rv)-1])
		str, err := parseLiteral(inner)
		if err != nil {
			return nil, err
		}
		s, ok := str.(string)
		if !ok {
			return nil, fmt.Errorf("TIMESTAMP expects a string, got %q", inner)
		}
		ts, ok := native.ParseTime(s)
		if !ok {
			return nil, fmt.Errorf("invalid timestamp %q", s)
		}
		return ts, nil
	}

	if i, err := strconv.ParseInt(rv, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(rv, 64); err == nil {
		return f, nil
	}

	return nil, fmt.Errorf("unsupported literal: %q", rv)
}

// splitKeyword splits "X <keyword> Y" case-insensitively at the last
// occurrence of keyword outside quotes. Returns (s, "") when absent.
//
// NOTE: requires spaces around keyword (" WHERE ").
func splitKeyword(s, keyword string) (string, string) {
	idxs := keywordIndexes(s, keyword)
	if len(idxs) == 0 {
		return strings.TrimSpace(s), ""
	}
	idx := idxs[len(idxs)-1]
	k := len(keyword) + 2
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+k:])
}

// splitAllKeyword splits s at every occurrence of keyword outside quotes.
func splitAllKeyword(s, keyword string) []string {
	idxs := keywordIndexes(s, keyword)
	k := len(keyword) + 2
	parts := make([]string, 0, len(idxs)+1)
	prev := 0
	for _, idx := range idxs {
		parts = append(parts, strings.TrimSpace(s[prev:idx]))
		prev = idx + k
	}
	return append(parts, strings.TrimSpace(s[prev:]))
}

func keywordIndexes(s, keyword string) []int {
	up := strings.ToUpper(s)
	k := " " + strings.ToUpper(keyword) + " "

	var idxs []int
	inQuote := false
	for i := 0; i < len(up); i++ {
		if up[i] == '\'' {
			inQuote = !inQuote
			continue
		}
		if !inQuote && strings.HasPrefix(up[i:], k) {
			idxs = append(idxs, i)
			i += len(k) - 2
		}
	}
	return idxs
}
