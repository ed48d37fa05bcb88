package bytesize

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// DecodeHook is a mapstructure decode hook that converts strings and plain
// integers into a ByteSize, so config sources can use human-readable sizes
// like "50Mi" alongside raw byte counts.
func DecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(ByteSize(0)) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return ParseByteSize(v)
	case int:
		return ByteSize(v), nil
	case int64:
		return ByteSize(v), nil
	case float64:
		return ByteSize(v), nil
	default:
		return data, nil
	}
}

var _ mapstructure.DecodeHookFuncType = DecodeHook
