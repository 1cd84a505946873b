// Package jsonmodel moves values between their JSON form and the generic
// data model (maps, slices, strings, numbers, booleans, nil) that binary
// codecs serialize. Message types only implement JSON marshalling; binary
// encoders pass them through here first.
package jsonmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ToNative marshals v as JSON and decodes the result into the generic data
// model. Integral numbers become int64 or uint64, other numbers float64.
func ToNative(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var native any
	if err := decoder.Decode(&native); err != nil {
		return nil, err
	}
	return convertNumbers(native)
}

// FromNative re-encodes a value of the generic data model as JSON and
// unmarshals it into v.
func FromNative(native any, v any) error {
	data, err := json.Marshal(normalizeValue(native))
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder.Decode(v)
}

func convertNumbers(v any) (any, error) {
	switch value := v.(type) {
	case json.Number:
		if integer, err := value.Int64(); err == nil {
			return integer, nil
		}
		if unsigned, err := strconv.ParseUint(value.String(), 10, 64); err == nil {
			return unsigned, nil
		}
		if float, err := value.Float64(); err == nil {
			return float, nil
		}
		return nil, fmt.Errorf("jsonmodel: number %q is out of range", value.String())

	case map[string]any:
		for key, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[key] = converted
		}
		return value, nil

	case []any:
		for index, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[index] = converted
		}
		return value, nil

	default:
		return v, nil
	}
}

// normalizeValue converts maps with non-string keys, as produced by some
// binary decoders, into map[string]any.
func normalizeValue(v any) any {
	switch value := v.(type) {
	case map[any]any:
		result := make(map[string]any, len(value))
		for key, element := range value {
			result[fmt.Sprint(key)] = normalizeValue(element)
		}
		return result

	case map[string]any:
		for key, element := range value {
			value[key] = normalizeValue(element)
		}
		return value

	case []any:
		for index, element := range value {
			value[index] = normalizeValue(element)
		}
		return value

	default:
		return v
	}
}
