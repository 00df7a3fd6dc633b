package chain

import (
	"errors"
	"testing"
)

func TestIsPermanent(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), false},
		{errors.New("context deadline exceeded"), false},
		{errors.New("invalid argument 0: hex string without 0x prefix"), true},
		{errors.New("method not found"), true},
	}
	for _, c := range cases {
		if got := isPermanent(c.err); got != c.want {
			t.Errorf("isPermanent(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestTipMethodABIRoundTrips(t *testing.T) {
	a := tipMethodABI("prevBlock")
	data, err := a.Pack("prevBlock")
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if len(data) != 4 {
		t.Fatalf("expected 4-byte selector, got %d bytes", len(data))
	}
}
