package model

import (
	"database/sql"
	"math"
	"strconv"
)

// Optional is a float that may be absent (flat window, zero variance).
// NaN and Inf never get stored: they become absent.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps v; NaN/Inf yield an absent value.
func Some(v float64) Optional {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Optional{}
	}
	return Optional{Value: v, Valid: true}
}

// None is the absent value.
func None() Optional { return Optional{} }

// Get returns the value and whether it is present.
func (o Optional) Get() (float64, bool) { return o.Value, o.Valid }

// Or returns the value or def when absent.
func (o Optional) Or(def float64) float64 {
	if !o.Valid {
		return def
	}
	return o.Value
}

// Format renders with prec decimals, empty string when absent.
func (o Optional) Format(prec int) string {
	if !o.Valid {
		return ""
	}
	return strconv.FormatFloat(o.Value, 'f', prec, 64)
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, o.Value, 'g', -1, 64), nil
}

func (o *Optional) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Optional{}
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Null converts to sql.NullFloat64 so absent values are stored as NULL.
func (o Optional) Null() sql.NullFloat64 {
	return sql.NullFloat64{Float64: o.Value, Valid: o.Valid}
}

// FromNull is the inverse of Null.
func FromNull(n sql.NullFloat64) Optional {
	if !n.Valid {
		return Optional{}
	}
	return Some(n.Float64)
}
