package selection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/logger"
)

// Operator is a comparison between two operands
type Operator string

const (
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// 긴 연산자를 먼저 매칭해야 ">="가 ">"로 잘리지 않음
var operators = []Operator{OpGE, OpLE, OpEQ, OpNE, OpGT, OpLT}

// Operand is either an indicator name or a numeric constant
type Operand struct {
	Name  string
	Value float64
	Const bool
}

// String returns the operand as written in a rule
func (o Operand) String() string {
	if o.Const {
		return strconv.FormatFloat(o.Value, 'g', -1, 64)
	}
	return o.Name
}

// resolve returns the operand value against a snapshot
func (o Operand) resolve(snap *contracts.IndicatorSnapshot) (float64, bool) {
	if o.Const {
		return o.Value, true
	}
	return snap.Get(o.Name)
}

// Predicate is one threshold rule "lhs op rhs"
type Predicate struct {
	Left  Operand
	Op    Operator
	Right Operand
}

// String returns the canonical rule text
func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Left, p.Op, p.Right)
}

// ParsePredicate parses "lhs op rhs" (e.g. "close > ma_50", "atr_pct >= 1.5")
func ParsePredicate(expr string) (Predicate, error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		// 공백 없이 쓴 경우 ("close>ma_50")
		for _, op := range operators {
			if i := strings.Index(expr, string(op)); i > 0 {
				fields = []string{expr[:i], string(op), expr[i+len(op):]}
				break
			}
		}
	}
	if len(fields) != 3 {
		return Predicate{}, fmt.Errorf("invalid rule %q: expected \"lhs op rhs\"", expr)
	}

	op := Operator(strings.TrimSpace(fields[1]))
	if !isOperator(op) {
		return Predicate{}, fmt.Errorf("invalid rule %q: unknown operator %q", expr, op)
	}

	left, err := parseOperand(fields[0])
	if err != nil {
		return Predicate{}, fmt.Errorf("invalid rule %q: %w", expr, err)
	}
	right, err := parseOperand(fields[2])
	if err != nil {
		return Predicate{}, fmt.Errorf("invalid rule %q: %w", expr, err)
	}
	if left.Const && right.Const {
		return Predicate{}, fmt.Errorf("invalid rule %q: at least one side must be an indicator", expr)
	}

	return Predicate{Left: left, Op: op, Right: right}, nil
}

// MustParsePredicate is ParsePredicate that panics on error (static rules only)
func MustParsePredicate(expr string) Predicate {
	p, err := ParsePredicate(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func isOperator(op Operator) bool {
	for _, o := range operators {
		if o == op {
			return true
		}
	}
	return false
}

func parseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, fmt.Errorf("empty operand")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Operand{Value: v, Const: true}, nil
	}
	name := strings.ToLower(s)
	for _, r := range name {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' {
			return Operand{}, fmt.Errorf("invalid indicator name %q", s)
		}
	}
	return Operand{Name: name}, nil
}

// Evaluate reports whether the snapshot satisfies the predicate.
// A missing indicator value never satisfies a predicate.
func (p Predicate) Evaluate(snap *contracts.IndicatorSnapshot) (bool, string) {
	l, ok := p.Left.resolve(snap)
	if !ok {
		return false, fmt.Sprintf("%s unavailable", p.Left.Name)
	}
	r, ok := p.Right.resolve(snap)
	if !ok {
		return false, fmt.Sprintf("%s unavailable", p.Right.Name)
	}

	var pass bool
	switch p.Op {
	case OpGT:
		pass = l > r
	case OpGE:
		pass = l >= r
	case OpLT:
		pass = l < r
	case OpLE:
		pass = l <= r
	case OpEQ:
		pass = l == r
	case OpNE:
		pass = l != r
	}
	if pass {
		return true, ""
	}
	return false, fmt.Sprintf("%s (%g %s %g)", p, l, p.Op, r)
}

// indicators returns the indicator names referenced by the predicate
func (p Predicate) indicators() []string {
	var out []string
	if !p.Left.Const {
		out = append(out, p.Left.Name)
	}
	if !p.Right.Const {
		out = append(out, p.Right.Name)
	}
	return out
}

// ScreenCriteria is the ordered set of predicates plus the percentile threshold
// SSOT: config/screen.yaml variants → strategyconfig.BuildCriteria
type ScreenCriteria struct {
	MinPercentile int
	Predicates    []Predicate
}

// Validate checks the threshold and that every referenced indicator exists
func (c ScreenCriteria) Validate(hasIndicator func(string) bool) error {
	if c.MinPercentile < 1 || c.MinPercentile > 99 {
		return fmt.Errorf("min_percentile must be within [1, 99], got %d", c.MinPercentile)
	}
	for _, p := range c.Predicates {
		for _, name := range p.indicators() {
			if !hasIndicator(name) {
				return fmt.Errorf("rule %q: %w: %s", p, contracts.ErrUnknownIndicator, name)
			}
		}
	}
	return nil
}

// Screener implements S5: rule filter over the latest snapshot
// ⭐ SSOT: S5 조건 평가는 여기서만
type Screener struct {
	criteria ScreenCriteria
	logger   *logger.Logger
}

// NewScreener creates a new screener
func NewScreener(criteria ScreenCriteria, logger *logger.Logger) *Screener {
	return &Screener{
		criteria: criteria,
		logger:   logger,
	}
}

// Criteria returns the screening criteria
func (s *Screener) Criteria() ScreenCriteria {
	return s.criteria
}

// PassesGate reports whether a ranked score clears the percentile threshold
func (s *Screener) PassesGate(score contracts.RSScore) bool {
	return score.IsRanked() && score.Percentile >= s.criteria.MinPercentile
}

// Check evaluates every predicate (AND). The first failing rule is returned as the reason.
func (s *Screener) Check(snap *contracts.IndicatorSnapshot) (bool, string) {
	for _, p := range s.criteria.Predicates {
		if ok, reason := p.Evaluate(snap); !ok {
			if s.logger != nil {
				s.logger.WithFields(map[string]interface{}{
					"ticker": snap.Ticker,
					"rule":   p.String(),
				}).Debug("Rule rejected ticker")
			}
			return false, reason
		}
	}
	return true, ""
}
