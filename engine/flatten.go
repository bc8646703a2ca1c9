package engine

import (
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	guestbridge "github.com/wippyai/guest-bridge"
)

// flattenType maps a WIT primitive to its core value type. Only the
// primitives a boundary signature can carry are supported; compound
// types never cross this boundary by value.
func flattenType(t wit.Type) (api.ValueType, error) {
	switch t.(type) {
	case wit.Bool, wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.Char:
		return api.ValueTypeI32, nil
	case wit.S64, wit.U64:
		return api.ValueTypeI64, nil
	case wit.F32:
		return api.ValueTypeF32, nil
	case wit.F64:
		return api.ValueTypeF64, nil
	}
	return 0, fmt.Errorf("unsupported boundary type %T", t)
}

// flattenSignature lowers a member signature to core param and result
// types. An owning return flattens to a single i32 reference.
func flattenSignature(sig guestbridge.Signature) (params, results []api.ValueType, err error) {
	params = make([]api.ValueType, 0, len(sig.Params))
	for _, p := range sig.Params {
		vt, err := flattenType(p)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, vt)
	}
	if sig.ReturnsOwn {
		results = []api.ValueType{api.ValueTypeI32}
	}
	return params, results, nil
}

// lowerArg converts one call argument to its core representation.
func lowerArg(t wit.Type, v any) (uint64, error) {
	switch t.(type) {
	case wit.Bool:
		b, ok := v.(bool)
		if !ok {
			return 0, fmt.Errorf("expected bool, got %T", v)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	case wit.S8, wit.S16, wit.S32:
		switch n := v.(type) {
		case int32:
			return api.EncodeI32(n), nil
		case int:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return 0, fmt.Errorf("value %d overflows i32", n)
			}
			return api.EncodeI32(int32(n)), nil
		}
		return 0, fmt.Errorf("expected int32, got %T", v)
	case wit.U8, wit.U16, wit.U32, wit.Char:
		n, ok := v.(uint32)
		if !ok {
			return 0, fmt.Errorf("expected uint32, got %T", v)
		}
		return uint64(n), nil
	case wit.S64:
		switch n := v.(type) {
		case int64:
			return api.EncodeI64(n), nil
		case int:
			return api.EncodeI64(int64(n)), nil
		}
		return 0, fmt.Errorf("expected int64, got %T", v)
	case wit.U64:
		n, ok := v.(uint64)
		if !ok {
			return 0, fmt.Errorf("expected uint64, got %T", v)
		}
		return n, nil
	case wit.F32:
		f, ok := v.(float32)
		if !ok {
			return 0, fmt.Errorf("expected float32, got %T", v)
		}
		return api.EncodeF32(f), nil
	case wit.F64:
		f, ok := v.(float64)
		if !ok {
			return 0, fmt.Errorf("expected float64, got %T", v)
		}
		return api.EncodeF64(f), nil
	}
	return 0, fmt.Errorf("unsupported boundary type %T", t)
}
