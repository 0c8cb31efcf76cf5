// Package jsonx holds jx helpers shared by the wire codecs.
package jsonx

import (
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decimal writes v as a JSON string to keep full precision.
func Decimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.String())
}

// DecodeDecimal reads a decimal encoded either as a JSON number or as a string.
// Null decodes to zero.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse decimal %s", n.String())
		}
		return v, nil
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// DecodeID reads an identifier that the backend may render as a number or a
// string. Null decodes to "".
func DecodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for identifier", d.Next())
	}
}

// DecodeOptStr reads a string that may be null.
func DecodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// DecodeInt reads an integer that may be rendered as a string or be null.
func DecodeInt(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Wrapf(err, "parse int %q", s)
		}
		return v, nil
	case jx.Null:
		return 0, d.Null()
	default:
		return d.Int()
	}
}
