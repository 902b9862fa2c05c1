package appdata

import (
	"bytes"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const hexDigits = "0123456789abcdef"

// Canonicalize serializes v as compact JSON with sorted keys.
//
// The output is a pure function of the document's content: key insertion order,
// number spelling ("1.50" vs "1.5", "-0" vs "0") and Go map iteration order never
// show up in it. A peer that sorts keys by UTF-16 code units and prints plain
// decimals produces the same bytes.
func Canonicalize(v Value) ([]byte, error) {
	c := canonicalizer{
		objects: make(map[*Object]bool),
		arrays:  make(map[arrayRef]bool),
	}
	if err := c.write(v, "$"); err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}

type canonicalizer struct {
	buf bytes.Buffer

	// containers on the current descent path
	objects map[*Object]bool
	arrays  map[arrayRef]bool
}

// arrayRef identifies an array by its backing storage and length. Two arrays
// with the same ref have the same elements, so meeting one inside itself is a
// cycle; a shorter view of the same storage is a different array.
type arrayRef struct {
	head *Value
	n    int
}

func (c *canonicalizer) write(v Value, path string) error {
	switch v.kind {
	case KindNull:
		c.buf.WriteString("null")
	case KindBool:
		if v.b {
			c.buf.WriteString("true")
		} else {
			c.buf.WriteString("false")
		}
	case KindNumber:
		if v.nonFinite {
			return &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: %v", ErrNonFinite, v.bad)}
		}
		if err := checkMagnitude(v.num); err != nil {
			return &CanonicalizationError{Path: path, Err: err}
		}
		c.buf.WriteString(v.num.String())
	case KindString:
		if err := writeString(&c.buf, v.str); err != nil {
			return &CanonicalizationError{Path: path, Err: err}
		}
	case KindArray:
		return c.writeArray(v.arr, path)
	case KindObject:
		return c.writeObject(v.obj, path)
	default:
		return &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: kind %d", ErrUnsupported, v.kind)}
	}
	return nil
}

// MaxExponent bounds the decimal exponent of a number. Plain decimal output
// grows with the exponent, and every finite float64 fits well inside it.
const MaxExponent = 400

func checkMagnitude(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return fmt.Errorf("%w: exponent %d outside ±%d", ErrUnsupported, exp, MaxExponent)
	}
	return nil
}

func (c *canonicalizer) writeArray(arr []Value, path string) error {
	if len(arr) == 0 {
		c.buf.WriteString("[]")
		return nil
	}

	ref := arrayRef{head: &arr[0], n: len(arr)}
	if c.arrays[ref] {
		return &CanonicalizationError{Path: path, Err: ErrCycle}
	}
	c.arrays[ref] = true
	defer delete(c.arrays, ref)

	c.buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			c.buf.WriteByte(',')
		}
		if err := c.write(elem, path+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	c.buf.WriteByte(']')
	return nil
}

func (c *canonicalizer) writeObject(obj *Object, path string) error {
	if c.objects[obj] {
		return &CanonicalizationError{Path: path, Err: ErrCycle}
	}
	c.objects[obj] = true
	defer delete(c.objects, obj)

	c.buf.WriteByte('{')
	for i, key := range obj.Keys() {
		if i > 0 {
			c.buf.WriteByte(',')
		}
		if err := writeString(&c.buf, key); err != nil {
			return &CanonicalizationError{Path: path, Err: fmt.Errorf("key %q: %w", key, err)}
		}
		c.buf.WriteByte(':')
		if err := c.write(obj.fields[key], childPath(path, key)); err != nil {
			return err
		}
	}
	c.buf.WriteByte('}')
	return nil
}

// writeString quotes s the way JSON.stringify does: only '"', '\' and control
// characters are escaped, everything else is copied as UTF-8.
func writeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}

	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= 0x20 && b != '"' && b != '\\' {
			continue
		}
		buf.WriteString(s[start:i])
		switch b {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
	return nil
}

func childPath(parent, key string) string {
	if isIdent(key) {
		return parent + "." + key
	}
	return parent + "[" + strconv.Quote(key) + "]"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
