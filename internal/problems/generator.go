// Package problems builds the arithmetic problem set for a live session.
package problems

import (
	"math"
	"math/rand/v2"

	"arith-live-service/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Generator draws problems from settings. The zero value uses the global source.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a generator backed by rnd; nil uses the global source, which is
// the only choice safe for concurrent Generate calls.
func NewGenerator(rnd *rand.Rand) *Generator {
	return &Generator{rnd: rnd}
}

// Generate returns settings.ProblemCount independent problems in order.
// Settings are expected to be validated already.
func (g *Generator) Generate(settings domain.Settings) []domain.Problem {
	out := make([]domain.Problem, 0, settings.ProblemCount)
	for i := 0; i < settings.ProblemCount; i++ {
		op := settings.Operations[g.intN(len(settings.Operations))]
		p := g.build(op, settings)
		p.ID = uuid.NewString()
		p.Index = i
		out = append(out, p)
	}
	return out
}

func (g *Generator) build(op domain.Operation, s domain.Settings) domain.Problem {
	switch op {
	case domain.OpMultiply:
		series := s.Series[g.intN(len(s.Series))]
		factor := g.factor(s.RightDigits)
		return domain.Problem{
			Operation: op,
			Left:      float64(series),
			Right:     float64(factor),
			Result:    float64(series * factor),
			Series:    series,
		}
	case domain.OpDivide:
		series := s.Series[g.intN(len(s.Series))]
		quotient := g.factor(s.RightDigits)
		return domain.Problem{
			Operation: op,
			Left:      float64(series * quotient),
			Right:     float64(series),
			Result:    float64(quotient),
			Series:    series,
		}
	default:
		left := g.operand(s.LeftDigits, s)
		right := g.operand(s.RightDigits, s)
		result := left.Add(right)
		if op == domain.OpSubtract {
			result = left.Sub(right)
		}
		return domain.Problem{
			Operation: op,
			Left:      left.InexactFloat64(),
			Right:     right.InexactFloat64(),
			Result:    result.Round(2).InexactFloat64(),
		}
	}
}

// operand draws uniformly from [min, max] where max = 10^digits-1 and min is -max
// when negatives are enabled. Half of the operands get a 1-2 digit fraction when
// decimals are enabled.
func (g *Generator) operand(digits int, s domain.Settings) decimal.Decimal {
	hi := maxForDigits(digits)
	lo := 0
	if s.Negatives {
		lo = -hi
	}
	v := decimal.NewFromInt(int64(lo + g.intN(hi-lo+1)))
	if !s.Decimals || g.intN(2) == 0 {
		return v
	}
	places := int32(1 + g.intN(2))
	frac := decimal.New(int64(1+g.intN(int(math.Pow10(int(places)))-1)), -places)
	if v.IsNegative() {
		return v.Sub(frac)
	}
	return v.Add(frac)
}

// factor draws a positive integer with exactly digits digits; never zero.
func (g *Generator) factor(digits int) int {
	hi := maxForDigits(digits)
	lo := 1
	if digits > 1 {
		lo = maxForDigits(digits-1) + 1
	}
	return lo + g.intN(hi-lo+1)
}

func (g *Generator) intN(n int) int {
	if g.rnd != nil {
		return g.rnd.IntN(n)
	}
	return rand.IntN(n)
}

func maxForDigits(digits int) int {
	if digits < 1 {
		digits = 1
	}
	return int(math.Pow10(digits)) - 1
}
