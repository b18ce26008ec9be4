package jsonutil

import (
	"errors"
	"testing"
)

func TestDecodeWithFallbackDirectJSON(t *testing.T) {
	var out struct {
		LeaveType string `json:"leave_type"`
		NumDays   int    `json:"num_days"`
	}
	err := DecodeWithFallback(`{"leave_type":"sick","num_days":2}`, &out)
	if err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if out.LeaveType != "sick" || out.NumDays != 2 {
		t.Fatalf("unexpected decode: %#v", out)
	}
}

func TestDecodeWithFallbackCodeFenceJSON(t *testing.T) {
	var out struct {
		Status string `json:"status"`
	}
	err := DecodeWithFallback("```json\n{\"status\":\"ok\"}\n```", &out)
	if err != nil {
		t.Fatalf("DecodeWithFallback() error = %v", err)
	}
	if out.Status != "ok" {
		t.Fatalf("status = %q, want ok", out.Status)
	}
}

func TestDecodeWithFallbackEmptyInput(t *testing.T) {
	var out map[string]any
	err := DecodeWithFallback(" \n\t ", &out)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestDecodeWithFallbackRejectsInvalidInput(t *testing.T) {
	var out map[string]any
	err := DecodeWithFallback("not a json payload", &out)
	if err == nil {
		t.Fatalf("expected error for invalid input")
	}
}
