package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	apperr "github.com/oggyb/heartpost/internal/errors"
)

func TestMapCategorizes(t *testing.T) {
	assert.NoError(t, apperr.Map(nil))

	assert.ErrorIs(t, apperr.Map(gorm.ErrRecordNotFound), apperr.ErrNotFound)
	assert.ErrorIs(t, apperr.Map(context.DeadlineExceeded), apperr.ErrTransient)
	assert.ErrorIs(t, apperr.Map(context.Canceled), apperr.ErrTransient)
	assert.ErrorIs(t, apperr.Map(fmt.Errorf("dial tcp: connection refused")), apperr.ErrTransient)
}

func TestMapKeepsCategorized(t *testing.T) {
	in := apperr.Validation("age %d out of range", 12)
	out := apperr.Map(in)
	assert.Equal(t, in, out, "already-categorized errors pass through untouched")
	assert.ErrorIs(t, out, apperr.ErrValidation)
}

func TestConstructorsWrapSentinels(t *testing.T) {
	err := apperr.RateLimited("daily swipe limit reached for user %d", 7)
	assert.ErrorIs(t, err, apperr.ErrRateLimited)
	assert.Contains(t, err.Error(), "user 7")

	assert.NotErrorIs(t, err, apperr.ErrValidation)
}
