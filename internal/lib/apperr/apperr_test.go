package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "unauthenticated", err: Unauthenticated("bad token"), want: KindUnauthenticated},
		{name: "wrapped forbidden", err: fmt.Errorf("op: %w", Forbidden("nope")), want: KindForbidden},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
		{name: "conflict with reason", err: Conflict("limit").WithReason(ReasonUsageLimitExceeded), want: KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("authz: %w", Forbidden("cannot deactivate yourself").WithReason(ReasonSelfDeactivation))

	assert.True(t, errors.Is(err, &Error{Kind: KindForbidden}))
	assert.True(t, errors.Is(err, &Error{Kind: KindForbidden, Reason: ReasonSelfDeactivation}))
	assert.False(t, errors.Is(err, &Error{Kind: KindForbidden, Reason: ReasonDuplicate}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.Equal(t, ReasonSelfDeactivation, ReasonOf(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation does not exist")
	err := Internal(cause)

	assert.Equal(t, "internal server error", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsKind(nil, KindInternal))
}
