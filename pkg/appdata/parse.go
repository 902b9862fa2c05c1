package appdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// Parse decodes JSON text into a value tree. Numbers keep their exact decimal value
// and duplicate keys are rejected, since either would make the document mean
// different things to different readers.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec, "$")
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, &CanonicalizationError{Path: "$", Err: errors.New("trailing data after document")}
	}
	return v, nil
}

// ParseObject is Parse for documents that must be JSON objects
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, &CanonicalizationError{Path: "$", Err: fmt.Errorf("document is %s, want object", v.Kind())}
	}
	return obj, nil
}

func parseValue(dec *json.Decoder, path string) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, &CanonicalizationError{Path: path, Err: err}
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec, path)
		case '[':
			return parseArray(dec, path)
		}
		return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("unexpected %q", t)}
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Value{}, &CanonicalizationError{Path: path, Err: err}
		}
		if err := checkMagnitude(d); err != nil {
			return Value{}, &CanonicalizationError{Path: path, Err: err}
		}
		return Number(d), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: %T", ErrUnsupported, tok)}
}

func parseObject(dec *json.Decoder, path string) (Value, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, &CanonicalizationError{Path: path, Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("object key is %T", tok)}
		}
		if _, dup := obj.Get(key); dup {
			return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: %q", ErrDuplicateKey, key)}
		}

		v, err := parseValue(dec, childPath(path, key))
		if err != nil {
			return Value{}, err
		}
		obj.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, &CanonicalizationError{Path: path, Err: err}
	}
	return ObjectValue(obj), nil
}

func parseArray(dec *json.Decoder, path string) (Value, error) {
	elems := []Value{}
	for dec.More() {
		v, err := parseValue(dec, path+"["+strconv.Itoa(len(elems))+"]")
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, &CanonicalizationError{Path: path, Err: err}
	}
	return Array(elems...), nil
}

// FromAny converts loosely typed Go data (map[string]any, []any, strings, numbers,
// bools, nil) into a value tree. Maps and slices that contain themselves are
// reported as cycles rather than followed.
func FromAny(x interface{}) (Value, error) {
	return fromAny(x, "$", make(map[visit]bool))
}

type visit struct {
	kind reflect.Kind
	ptr  uintptr
	n    int // slice length; a shorter view of the same storage is a different slice
}

func fromAny(x interface{}, path string, active map[visit]bool) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Object:
		return ObjectValue(t), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Value{}, &CanonicalizationError{Path: path, Err: err}
		}
		if err := checkMagnitude(d); err != nil {
			return Value{}, &CanonicalizationError{Path: path, Err: err}
		}
		return Number(d), nil
	case decimal.Decimal:
		return Number(t), nil
	case *big.Int:
		return BigInt(t), nil
	case common.Address:
		return String(t.Hex()), nil
	case common.Hash:
		return String(t.Hex()), nil
	case []byte:
		return String(hexutil.Encode(t)), nil
	case float64:
		return Float(t), nil
	case float32:
		return Float(float64(t)), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return BigInt(new(big.Int).SetUint64(rv.Uint())), nil
	case reflect.Slice, reflect.Array:
		return fromList(rv, path, active)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: map key %s", ErrUnsupported, rv.Type().Key())}
		}
		return fromMap(rv, path, active)
	case reflect.Ptr:
		if rv.IsNil() {
			return Null(), nil
		}
		key := visit{kind: reflect.Ptr, ptr: rv.Pointer()}
		if active[key] {
			return Value{}, &CanonicalizationError{Path: path, Err: ErrCycle}
		}
		active[key] = true
		defer delete(active, key)
		return fromAny(rv.Elem().Interface(), path, active)
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromAny(rv.Elem().Interface(), path, active)
	}
	return Value{}, &CanonicalizationError{Path: path, Err: fmt.Errorf("%w: %T", ErrUnsupported, x)}
}

func fromList(rv reflect.Value, path string, active map[visit]bool) (Value, error) {
	if rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Len() > 0 {
			key := visit{kind: reflect.Slice, ptr: rv.Pointer(), n: rv.Len()}
			if active[key] {
				return Value{}, &CanonicalizationError{Path: path, Err: ErrCycle}
			}
			active[key] = true
			defer delete(active, key)
		}
	}

	elems := make([]Value, rv.Len())
	for i := range elems {
		v, err := fromAny(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]", active)
		if err != nil {
			return Value{}, err
		}
		elems[i] = v
	}
	return Array(elems...), nil
}

func fromMap(rv reflect.Value, path string, active map[visit]bool) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	key := visit{kind: reflect.Map, ptr: rv.Pointer()}
	if active[key] {
		return Value{}, &CanonicalizationError{Path: path, Err: ErrCycle}
	}
	active[key] = true
	defer delete(active, key)

	obj := NewObject()
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		v, err := fromAny(iter.Value().Interface(), childPath(path, k), active)
		if err != nil {
			return Value{}, err
		}
		obj.Set(k, v)
	}
	return ObjectValue(obj), nil
}
