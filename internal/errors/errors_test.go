package errors

import (
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: "run not found",
	}

	expected := "NOT_FOUND: run not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidInput(t *testing.T) {
	err := NewInvalidInput("payload is not JSON")

	if err.Code != ErrInvalidInput {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidInput)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "payload is not JSON" {
		t.Errorf("Message = %q, want %q", err.Message, "payload is not JSON")
	}
}

func TestNewInvalidConfig(t *testing.T) {
	t.Run("mapping entry", func(t *testing.T) {
		err := NewInvalidConfig(3, "multiplier must be > 0")

		if err.Code != ErrInvalidConfig {
			t.Errorf("Code = %q, want %q", err.Code, ErrInvalidConfig)
		}
		if err.Message != "mapping #3: multiplier must be > 0" {
			t.Errorf("Message = %q", err.Message)
		}
		if err.Details["index"] != 3 {
			t.Errorf("Details[index] = %v, want 3", err.Details["index"])
		}
	})

	t.Run("report setting", func(t *testing.T) {
		err := NewInvalidConfig(-1, "bad setting")
		if err.Message != "bad setting" {
			t.Errorf("Message = %q, want %q", err.Message, "bad setting")
		}
		if err.Details != nil {
			t.Errorf("Details = %v, want nil", err.Details)
		}
	})
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01HZX")

	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "01HZX" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "01HZX")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrInternal, false},
		{"wrapped", fmt.Errorf("load: %w", NewInvalidConfig(0, "x")), ErrInvalidConfig, true},
		{"plain error", fmt.Errorf("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
