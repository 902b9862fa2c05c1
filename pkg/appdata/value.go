package appdata

import (
	"math"
	"math/big"
	"sort"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// Kind tags the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one node of an app-data document.
// The zero Value is null.
type Value struct {
	kind      Kind
	b         bool
	num       decimal.Decimal
	nonFinite bool    // built from NaN or an infinity
	bad       float64 // the offending float when nonFinite is set
	str       string
	arr       []Value
	obj       *Object
}

func Null() Value                    { return Value{} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func String(s string) Value          { return Value{kind: KindString, str: s} }
func Int(i int64) Value              { return Value{kind: KindNumber, num: decimal.NewFromInt(i)} }
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// BigInt wraps an arbitrary-precision integer. nil becomes null.
func BigInt(i *big.Int) Value {
	if i == nil {
		return Null()
	}
	return Value{kind: KindNumber, num: decimal.NewFromBigInt(i, 0)}
}

// Float accepts any float64. NaN and infinities are kept so Canonicalize can
// report where they are.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{kind: KindNumber, bad: f, nonFinite: true}
	}
	return Value{kind: KindNumber, num: decimal.NewFromFloat(f)}
}

// Array holds elements in order. The slice is used as given, not copied.
func Array(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindArray, arr: elems}
}

// ObjectValue wraps o. A nil object becomes null.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)              { return v.b, v.kind == KindBool }
func (v Value) AsString() (string, bool)          { return v.str, v.kind == KindString }
func (v Value) AsNumber() (decimal.Decimal, bool) { return v.num, v.kind == KindNumber && !v.nonFinite }
func (v Value) AsArray() ([]Value, bool)          { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (*Object, bool)         { return v.obj, v.kind == KindObject }

// Object is an unordered string-keyed map. Key order never reaches the canonical form.
type Object struct {
	fields map[string]Value
}

func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set stores v under key and returns o for chaining
func (o *Object) Set(key string, v Value) *Object {
	o.fields[key] = v
	return o
}

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

func (o *Object) Delete(key string) {
	delete(o.fields, key)
}

func (o *Object) Len() int {
	return len(o.fields)
}

// Keys returns the keys in canonical order
func (o *Object) Keys() []string {
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// Lookup walks nested objects: Lookup("metadata", "hooks", "pre")
func (o *Object) Lookup(path ...string) (Value, bool) {
	cur := ObjectValue(o)
	for _, key := range path {
		obj, ok := cur.AsObject()
		if !ok {
			return Value{}, false
		}
		if cur, ok = obj.Get(key); !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// sortKeys orders keys by UTF-16 code units, which is how a JavaScript peer
// compares strings. It differs from byte order only when supplementary-plane
// characters meet BMP characters above U+E000.
func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		return lessUTF16(keys[i], keys[j])
	})
}

func lessUTF16(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}
