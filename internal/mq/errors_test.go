package mq

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := NewConnectionError("failed to connect", errors.New("dial tcp: refused"))
	want := "[CONNECTION:CONN_001] failed to connect: dial tcp: refused"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	v := NewValidationError("invalid broker type", "pulsar")
	if v.Error() != "[VALIDATION:VAL_001] invalid broker type - pulsar" {
		t.Errorf("unexpected validation text %q", v.Error())
	}
}

func TestClosedError_CarriesConnMarker(t *testing.T) {
	err := NewClosedError("consumer closed")
	if !strings.Contains(err.Error(), "CONN_") {
		t.Errorf("expected CONN_ marker in %q", err.Error())
	}
	if strings.Contains(NewNetworkError("read failed", nil).Error(), "CONN_") {
		t.Error("network errors must not carry the CONN_ marker")
	}
}

func TestIsType_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("start session: %w", NewSubscriptionError("subscribe", cause))

	if !IsType(wrapped, ErrorSubscription) {
		t.Error("expected wrapped subscription error to match")
	}
	if IsType(wrapped, ErrorConnection) {
		t.Error("did not expect connection type")
	}
	if IsType(cause, ErrorSubscription) {
		t.Error("plain error should not match")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected Unwrap to expose the cause")
	}
}
