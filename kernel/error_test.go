package kernel

import "testing"

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "e820",
		Message: "malformed memory map",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected err.Error() to return %q; got %q", err.Message, err.Error())
	}
}
