package dispatch

import (
	"bytes"
	"reflect"

	"github.com/filecoin-project/go-state-types/cbor"
	fxcbor "github.com/fxamacker/cbor/v2"
	"golang.org/x/xerrors"
)

// MethodSignature wraps a specific method and allows you to encode/decodes input/output bytes into concrete types.
type MethodSignature interface {
	// ArgNil returns a nil value of the parameter type.
	ArgNil() reflect.Value
	// ArgInterface decodes raw into a value of the parameter type.
	ArgInterface(argBytes []byte) (interface{}, error)
}

type methodSignature struct {
	method reflect.Value
}

var _ MethodSignature = (*methodSignature)(nil)

func (ms *methodSignature) argType() reflect.Type {
	return ms.method.Type().In(1)
}

func (ms *methodSignature) ArgNil() reflect.Value {
	return reflect.New(ms.argType()).Elem()
}

// ArgInterface decodes argBytes into the parameter type of the method. `[]byte` parameters receive
// the raw bytes, cbor-gen types decode themselves and any other type goes through the generic
// CBOR codec. Empty input yields the zero value.
func (ms *methodSignature) ArgInterface(argBytes []byte) (interface{}, error) {
	t := ms.argType()
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		return argBytes, nil
	}

	var v reflect.Value
	if t.Kind() == reflect.Ptr {
		v = reflect.New(t.Elem())
	} else {
		v = reflect.New(t)
	}

	if len(argBytes) > 0 {
		if um, ok := v.Interface().(cbor.Unmarshaler); ok {
			if err := um.UnmarshalCBOR(bytes.NewReader(argBytes)); err != nil {
				return nil, xerrors.Errorf("decode %s: %w", t, err)
			}
		} else if err := fxcbor.Unmarshal(argBytes, v.Interface()); err != nil {
			return nil, xerrors.Errorf("decode %s: %w", t, err)
		}
	}

	if t.Kind() == reflect.Ptr {
		return v.Interface(), nil
	}
	return v.Elem().Interface(), nil
}
