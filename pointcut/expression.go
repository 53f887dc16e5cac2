/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pointcut

// Expression pointcut syntax:
//
//	execution(<result> [<type>.]<name>(<params>))
//	within(<type>)
//	<expr> && <expr>, <expr> || <expr>, !<expr>, (<expr>)
//
// <result>, <type>, <name> and each param are glob patterns. "*" as a param
// matches exactly one parameter, ".." matches any number. <result> is matched
// against the single non-error result type, "void" when there is none, and
// "error" for methods returning only an error.
//
// Examples:
//
//	execution(* Greet(..))
//	execution(string *Service.Get*(context.Context, ..))
//	within(billing.*) && !execution(* String())

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
	"github.com/rulego/aop/api/types"
)

var (
	_ types.Pointcut                       = (*Expression)(nil)
	_ types.ClassFilter                    = (*Expression)(nil)
	_ types.IntroductionAwareMethodMatcher = methodMatcher{}
)

// ErrExpressionSyntax is returned for malformed pointcut expressions.
var ErrExpressionSyntax = errors.New("pointcut expression syntax error")

// Expression is a static pointcut parsed from an execution/within expression.
type Expression struct {
	Source string
	root   node
}

// NewExpression parses source.
func NewExpression(source string) (*Expression, error) {
	p := &exprParser{src: source}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Expression{Source: source, root: root}, nil
}

// MustExpression is like NewExpression but panics on a syntax error.
func MustExpression(source string) *Expression {
	e, err := NewExpression(source)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expression) ClassFilter() types.ClassFilter {
	return e
}

func (e *Expression) MethodMatcher() types.MethodMatcher {
	return methodMatcher{e: e}
}

// Matches implements ClassFilter. It is conservative: it rejects a class only
// when no method of it can match.
func (e *Expression) Matches(class reflect.Type) bool {
	return e.root.couldMatch(class)
}

// MatchesMethod implements the static method match.
func (e *Expression) MatchesMethod(method *types.Method, class reflect.Type) bool {
	return e.root.match(method, class)
}

func (e *Expression) String() string {
	return "Expression[" + e.Source + "]"
}

// methodMatcher exposes the (method, class) match under the MethodMatcher name,
// which Expression cannot implement directly because ClassFilter already owns Matches.
type methodMatcher struct {
	e *Expression
}

func (m methodMatcher) Matches(method *types.Method, class reflect.Type) bool {
	return m.e.MatchesMethod(method, class)
}

func (m methodMatcher) IsRuntime() bool { return false }

func (m methodMatcher) MatchesArgs(method *types.Method, class reflect.Type, args []any) bool {
	return m.e.MatchesMethod(method, class)
}

func (m methodMatcher) MatchesIntroductions(method *types.Method, class reflect.Type, hasIntroductions bool) bool {
	return m.e.MatchesMethod(method, class)
}

func (m methodMatcher) String() string { return m.e.String() }

type node interface {
	match(method *types.Method, class reflect.Type) bool
	couldMatch(class reflect.Type) bool
}

type andNode struct{ l, r node }

func (n andNode) match(m *types.Method, c reflect.Type) bool { return n.l.match(m, c) && n.r.match(m, c) }
func (n andNode) couldMatch(c reflect.Type) bool             { return n.l.couldMatch(c) && n.r.couldMatch(c) }

type orNode struct{ l, r node }

func (n orNode) match(m *types.Method, c reflect.Type) bool { return n.l.match(m, c) || n.r.match(m, c) }
func (n orNode) couldMatch(c reflect.Type) bool             { return n.l.couldMatch(c) || n.r.couldMatch(c) }

type notNode struct{ n node }

func (n notNode) match(m *types.Method, c reflect.Type) bool { return !n.n.match(m, c) }

// couldMatch cannot be negated without knowing the method.
func (n notNode) couldMatch(reflect.Type) bool { return true }

type withinNode struct{ typ glob.Glob }

func (n withinNode) match(m *types.Method, c reflect.Type) bool {
	if c == nil {
		return m.DeclaringType != nil && n.typ.Match(ClassName(m.DeclaringType))
	}
	return n.typ.Match(ClassName(c))
}

func (n withinNode) couldMatch(c reflect.Type) bool { return c == nil || n.typ.Match(ClassName(c)) }

type executionNode struct {
	result glob.Glob
	typ    glob.Glob // nil when no declaring type pattern was given
	name   glob.Glob
	params []string
	pglobs []glob.Glob
}

func (n executionNode) match(m *types.Method, c reflect.Type) bool {
	if !n.name.Match(m.Name) {
		return false
	}
	if n.typ != nil {
		typeOk := (c != nil && n.typ.Match(ClassName(c))) ||
			(m.DeclaringType != nil && n.typ.Match(ClassName(m.DeclaringType)))
		if !typeOk {
			return false
		}
	}
	if !n.result.Match(resultName(m)) {
		return false
	}
	in := make([]string, m.Type.NumIn())
	for i := range in {
		in[i] = strings.TrimPrefix(m.Type.In(i).String(), "*")
	}
	return n.matchParams(0, in)
}

func (n executionNode) matchParams(pi int, in []string) bool {
	if pi == len(n.params) {
		return len(in) == 0
	}
	switch n.params[pi] {
	case "..":
		for skip := 0; skip <= len(in); skip++ {
			if n.matchParams(pi+1, in[skip:]) {
				return true
			}
		}
		return false
	default:
		if len(in) == 0 || !n.pglobs[pi].Match(in[0]) {
			return false
		}
		return n.matchParams(pi+1, in[1:])
	}
}

// couldMatch is true: the declaring type may be an interface the class implements.
func (n executionNode) couldMatch(reflect.Type) bool {
	return true
}

func resultName(m *types.Method) string {
	results := m.ValueResults()
	switch len(results) {
	case 0:
		if m.ReturnsError() {
			return "error"
		}
		return "void"
	case 1:
		return strings.TrimPrefix(results[0].String(), "*")
	default:
		names := make([]string, len(results))
		for i, r := range results {
			names[i] = r.String()
		}
		return "(" + strings.Join(names, ",") + ")"
	}
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrExpressionSyntax, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *exprParser) parse() (node, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return n, nil
}

func (p *exprParser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.consume("||") {
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = orNode{l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) parseAnd() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.consume("&&") {
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = andNode{l: l, r: r}
	}
	return l, nil
}

func (p *exprParser) parseUnary() (node, error) {
	if p.consume("!") {
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{n: n}, nil
	}
	if p.consume("(") {
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(")") {
			return nil, p.errorf("missing )")
		}
		return n, nil
	}
	return p.parsePrimitive()
}

func (p *exprParser) parsePrimitive() (node, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && unicode.IsLetter(rune(p.src[p.pos])) {
		p.pos++
	}
	keyword := p.src[start:p.pos]
	if !p.consume("(") {
		return nil, p.errorf("expected ( after %q", keyword)
	}
	body, err := p.balanced()
	if err != nil {
		return nil, err
	}
	switch keyword {
	case "execution":
		return p.execution(strings.TrimSpace(body))
	case "within":
		g, err := glob.Compile(strings.TrimSpace(body))
		if err != nil {
			return nil, p.errorf("within: %v", err)
		}
		return withinNode{typ: g}, nil
	default:
		return nil, p.errorf("unknown designator %q", keyword)
	}
}

// balanced returns the text up to the parenthesis closing the one just consumed.
func (p *exprParser) balanced() (string, error) {
	depth := 1
	start := p.pos
	for ; p.pos < len(p.src); p.pos++ {
		switch p.src[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
		}
	}
	return "", p.errorf("unbalanced parentheses")
}

func (p *exprParser) execution(body string) (node, error) {
	sp := strings.IndexFunc(body, unicode.IsSpace)
	if sp < 0 {
		return nil, p.errorf("execution: missing result pattern")
	}
	resultPattern, rest := body[:sp], strings.TrimSpace(body[sp:])
	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return nil, p.errorf("execution: missing parameter list")
	}
	head, params := rest[:open], rest[open+1:len(rest)-1]

	var n executionNode
	var err error
	if n.result, err = glob.Compile(resultPattern); err != nil {
		return nil, p.errorf("execution result: %v", err)
	}
	namePattern := head
	if dot := strings.LastIndex(head, "."); dot >= 0 {
		if n.typ, err = glob.Compile(head[:dot]); err != nil {
			return nil, p.errorf("execution type: %v", err)
		}
		namePattern = head[dot+1:]
	}
	if namePattern == "" {
		return nil, p.errorf("execution: missing method name pattern")
	}
	if n.name, err = glob.Compile(namePattern); err != nil {
		return nil, p.errorf("execution name: %v", err)
	}
	if params = strings.TrimSpace(params); params != "" {
		for _, param := range strings.Split(params, ",") {
			param = strings.TrimSpace(param)
			var g glob.Glob
			if param != ".." {
				if g, err = glob.Compile(param); err != nil {
					return nil, p.errorf("execution param: %v", err)
				}
			}
			n.params = append(n.params, param)
			n.pglobs = append(n.pglobs, g)
		}
	}
	return n, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *exprParser) consume(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}
