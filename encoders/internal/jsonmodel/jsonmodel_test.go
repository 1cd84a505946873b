package jsonmodel

import (
	"testing"
)

type envelope struct {
	ID      uint64         `json:"id"`
	Content map[string]any `json:"content"`
}

func TestToNativeNumbers(t *testing.T) {
	native, err := ToNative(map[string]any{
		"small": 7,
		"big":   uint64(18446744073709551615),
		"float": 1.5,
	})
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}

	m := native.(map[string]any)
	if m["small"] != int64(7) {
		t.Errorf("Expected int64(7), got %#v", m["small"])
	}
	if m["big"] != uint64(18446744073709551615) {
		t.Errorf("Expected max uint64, got %#v", m["big"])
	}
	if m["float"] != 1.5 {
		t.Errorf("Expected 1.5, got %#v", m["float"])
	}
}

func TestFromNativeNormalizesKeys(t *testing.T) {
	native := map[any]any{
		"id":      uint64(3),
		"content": map[any]any{1: "one", "two": []any{map[any]any{true: nil}}},
	}

	var result envelope
	if err := FromNative(native, &result); err != nil {
		t.Fatalf("FromNative failed: %v", err)
	}
	if result.ID != 3 {
		t.Errorf("Expected id 3, got %d", result.ID)
	}
	if result.Content["1"] != "one" {
		t.Errorf("Expected content[\"1\"] to be \"one\", got %#v", result.Content["1"])
	}
}

func TestRoundTrip(t *testing.T) {
	original := envelope{ID: 42, Content: map[string]any{"status": "Success"}}

	native, err := ToNative(original)
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}

	var result envelope
	if err := FromNative(native, &result); err != nil {
		t.Fatalf("FromNative failed: %v", err)
	}
	if result.ID != 42 || result.Content["status"] != "Success" {
		t.Errorf("Expected %+v, got %+v", original, result)
	}
}
