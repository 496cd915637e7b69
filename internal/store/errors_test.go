package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError_KeepsSentinel(t *testing.T) {
	t.Parallel()

	err := NewStoreError("episode", "insert", fmt.Errorf("%w: email m1", ErrDuplicate))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "insert episode: memory already exists: email m1")
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewStoreError("fact", "insert", nil))

	cause := errors.New("connection reset")
	err := NewStoreError("fact", "insert", cause)

	assert.EqualError(t, err, "insert fact: connection reset")
	assert.ErrorIs(t, err, cause)

	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "fact", storeErr.Entity)
}
