package pylite

import (
	"math"
	"math/big"
)

// Integers are int64 while they fit and *big.Int once they do not. Every
// operation normalizes its result, so a *big.Int never holds a value that
// fits in 64 bits.

// maxIntBits bounds the size of any integer a program builds.
const maxIntBits = 1 << 20

// maxIntDigits matches CPython's limit on decimal conversion.
const maxIntDigits = 4300

func normInt(b *big.Int) Value {
	if b.IsInt64() {
		return b.Int64()
	}
	return b
}

// toBig widens any integer value, including bool.
func toBig(v Value) (*big.Int, bool) {
	if b, ok := v.(*big.Int); ok {
		return b, true
	}
	if n, ok := asInt(v); ok {
		return big.NewInt(n), true
	}
	return nil, false
}

// bigFloat converts b to the nearest float. Out of range is an
// OverflowError, as in CPython.
func bigFloat(b *big.Int) (float64, error) {
	f, _ := new(big.Float).SetInt(b).Float64()
	if math.IsInf(f, 0) {
		return 0, newErr(OverflowErrorClass, "int too large to convert to float")
	}
	return f, nil
}

func checkBits(b *big.Int) (Value, error) {
	if b.BitLen() > maxIntBits {
		return nil, newErr(MemoryErrorClass, "integer result too large")
	}
	return normInt(b), nil
}

func bigOp(op string, a, b *big.Int) (Value, error) {
	r := new(big.Int)
	switch op {
	case "+":
		r.Add(a, b)
	case "-":
		r.Sub(a, b)
	case "*":
		if a.BitLen()+b.BitLen() > maxIntBits {
			return nil, newErr(MemoryErrorClass, "integer result too large")
		}
		r.Mul(a, b)
	case "/":
		if b.Sign() == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "division by zero")
		}
		q, _ := new(big.Rat).SetFrac(a, b).Float64()
		if math.IsInf(q, 0) {
			return nil, newErr(OverflowErrorClass, "integer division result too large for a float")
		}
		return q, nil
	case "//", "%":
		if b.Sign() == 0 {
			return nil, newErr(ZeroDivisionErrorClass, "integer division or modulo by zero")
		}
		q, m := new(big.Int), new(big.Int)
		// DivMod is Euclidean; floor division rounds toward negative infinity.
		q.DivMod(a, b, m)
		if m.Sign() != 0 && b.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
			m.Add(m, b)
		}
		if op == "//" {
			return normInt(q), nil
		}
		return normInt(m), nil
	case "**":
		if b.Sign() < 0 {
			if a.Sign() == 0 {
				return nil, newErr(ZeroDivisionErrorClass, "0.0 cannot be raised to a negative power")
			}
			fa, err := bigFloat(a)
			if err != nil {
				return nil, err
			}
			fb, err := bigFloat(b)
			if err != nil {
				return nil, err
			}
			return floatOp("**", fa, fb)
		}
		if b.Sign() == 0 {
			return int64(1), nil
		}
		if a.CmpAbs(big.NewInt(1)) <= 0 {
			// 0, 1 and -1 stay small for any exponent.
			if a.Sign() < 0 && b.Bit(0) == 0 {
				return int64(1), nil
			}
			return normInt(new(big.Int).Set(a)), nil
		}
		if !b.IsInt64() || b.Int64() > maxIntBits || int64(a.BitLen()-1)*b.Int64() > maxIntBits {
			return nil, newErr(MemoryErrorClass, "integer result too large")
		}
		r.Exp(a, b, nil)
	case "<<":
		if b.Sign() < 0 {
			return nil, newErr(ValueErrorClass, "negative shift count")
		}
		if a.Sign() == 0 {
			return int64(0), nil
		}
		if !b.IsInt64() || b.Int64() > maxIntBits || int64(a.BitLen())+b.Int64() > maxIntBits {
			return nil, newErr(MemoryErrorClass, "integer result too large")
		}
		r.Lsh(a, uint(b.Int64()))
	case ">>":
		if b.Sign() < 0 {
			return nil, newErr(ValueErrorClass, "negative shift count")
		}
		if !b.IsInt64() || b.Int64() > int64(a.BitLen()) {
			if a.Sign() < 0 {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		r.Rsh(a, uint(b.Int64()))
	case "&":
		r.And(a, b)
	case "|":
		r.Or(a, b)
	case "^":
		r.Xor(a, b)
	default:
		return nil, errUnsupported(op, a, b)
	}
	return checkBits(r)
}

// formatBig renders b in decimal, refusing values past maxIntDigits.
func formatBig(b *big.Int) (string, error) {
	// 3.33 bits per decimal digit.
	if b.BitLen() > maxIntDigits*3321/1000+4 {
		s := b.String()
		digits := len(s)
		if b.Sign() < 0 {
			digits--
		}
		if digits > maxIntDigits {
			return "", newErr(ValueErrorClass, "Exceeds the limit (%d digits) for integer string conversion; use sys.set_int_max_str_digits() to increase the limit", maxIntDigits)
		}
		return s, nil
	}
	return b.String(), nil
}

// compareBig orders two numbers when at least one is a *big.Int. ok is
// false when either is not a number; unordered reports a NaN operand.
func compareBig(a, b Value) (c int, unordered, ok bool) {
	ab, aInt := toBig(a)
	bb, bInt := toBig(b)
	switch {
	case aInt && bInt:
		return ab.Cmp(bb), false, true
	case aInt:
		if f, isF := b.(float64); isF {
			c, unordered = compareBigFloat(ab, f)
			return c, unordered, true
		}
	case bInt:
		if f, isF := a.(float64); isF {
			c, unordered = compareBigFloat(bb, f)
			return -c, unordered, true
		}
	}
	return 0, false, false
}

// compareBigFloat compares exactly, without rounding b to a float.
func compareBigFloat(b *big.Int, f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, true
	case math.IsInf(f, 1):
		return -1, false
	case math.IsInf(f, -1):
		return 1, false
	}
	return new(big.Float).SetInt(b).Cmp(big.NewFloat(f)), false
}
