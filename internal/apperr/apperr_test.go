package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"authorization sentinel", ErrNotParty, KindAuthorization},
		{"conflict sentinel", ErrAlreadyFinalized, KindConflict},
		{"validation sentinel", ErrPaymentRequired, KindValidation},
		{"not found sentinel", ErrNotFound, KindNotFound},
		{"ad-hoc error", New(KindValidation, "bad slot index %d", 7), KindValidation},
		{"wrapped sentinel", fmt.Errorf("accept viewing request: %w", ErrSelfAcceptance), KindAuthorization},
		{"infra wrapped", Infra(errors.New("connection reset")), KindInfrastructure},
		{"unknown error", errors.New("plain"), KindInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWrappedSentinelMatches(t *testing.T) {
	err := fmt.Errorf("release booking: %w", ErrAlreadyFinalized)
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Error("wrapped sentinel should match with errors.Is")
	}
	if errors.Is(err, ErrInvalidTransition) {
		t.Error("wrapped sentinel should not match a different sentinel")
	}
}

func TestInfraNil(t *testing.T) {
	if Infra(nil) != nil {
		t.Error("Infra(nil) should be nil")
	}
}
