package exitcodes

import (
	"errors"
	"fmt"
	"testing"
)

func TestFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"test failure", NewTestFailureError("2 of 18 scenarios failed"), TestFailure},
		{"wrapped failure", fmt.Errorf("run: %w", NewTestFailureError("x")), TestFailure},
		{"runtime", NewRuntimeError(errors.New("baseUrl is required")), RuntimeErr},
		{"wrapped runtime", fmt.Errorf("start: %w", NewRuntimeError(errors.New("no chrome"))), RuntimeErr},
		{"untyped", errors.New("boom"), RuntimeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := For(tt.err); got != tt.want {
				t.Errorf("For(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	base := errors.New("chrome not found")
	err := NewRuntimeError(base)
	if !errors.Is(err, base) {
		t.Error("RuntimeError does not unwrap to its cause")
	}
	if err.Error() != "runtime error: chrome not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
