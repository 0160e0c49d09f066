package accessgraph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyquery/accessgraph"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := accessgraph.NewNotFoundError("User")
		assert.Equal(t, "accessgraph: User not found", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := accessgraph.NewNotFoundError("Post")
		assert.True(t, errors.Is(err, accessgraph.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := accessgraph.NewNotFoundError("Comment")
		assert.True(t, accessgraph.IsNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, accessgraph.IsNotFound(wrapped))

		// Sentinel error
		assert.True(t, accessgraph.IsNotFound(accessgraph.ErrNotFound))

		// Non-matching error
		assert.False(t, accessgraph.IsNotFound(errors.New("other error")))
		assert.False(t, accessgraph.IsNotFound(nil))
	})
}

func TestNotSingularError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := accessgraph.NewNotSingularError("User")
		assert.Equal(t, "accessgraph: User not singular", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := accessgraph.NewNotSingularError("Post")
		assert.True(t, errors.Is(err, accessgraph.ErrNotSingular))
	})

	t.Run("IsNotSingular", func(t *testing.T) {
		err := accessgraph.NewNotSingularError("Comment")
		assert.True(t, accessgraph.IsNotSingular(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, accessgraph.IsNotSingular(wrapped))

		// Sentinel error
		assert.True(t, accessgraph.IsNotSingular(accessgraph.ErrNotSingular))

		// Non-matching error
		assert.False(t, accessgraph.IsNotSingular(errors.New("other error")))
		assert.False(t, accessgraph.IsNotSingular(nil))
	})
}

func TestNotLoadedError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := accessgraph.NewNotLoadedError("posts")
		assert.Equal(t, `accessgraph: edge "posts" was not loaded`, err.Error())
	})

	t.Run("IsNotLoaded", func(t *testing.T) {
		err := accessgraph.NewNotLoadedError("comments")
		assert.True(t, accessgraph.IsNotLoaded(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, accessgraph.IsNotLoaded(wrapped))

		// Non-matching error
		assert.False(t, accessgraph.IsNotLoaded(errors.New("other error")))
		assert.False(t, accessgraph.IsNotLoaded(nil))
	})
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := accessgraph.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "accessgraph: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := accessgraph.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		err := accessgraph.NewConstraintError("check failed", nil)
		assert.True(t, accessgraph.IsConstraintError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, accessgraph.IsConstraintError(wrapped))

		// Non-matching error
		assert.False(t, accessgraph.IsConstraintError(errors.New("other error")))
		assert.False(t, accessgraph.IsConstraintError(nil))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := accessgraph.NewValidationError("email", errors.New("invalid format"))
		assert.Equal(t, `accessgraph: validator failed for field "email": invalid format`, err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("too short")
		err := accessgraph.NewValidationError("name", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsValidationError", func(t *testing.T) {
		err := accessgraph.NewValidationError("age", errors.New("must be positive"))
		assert.True(t, accessgraph.IsValidationError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, accessgraph.IsValidationError(wrapped))

		// Non-matching error
		assert.False(t, accessgraph.IsValidationError(errors.New("other error")))
		assert.False(t, accessgraph.IsValidationError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &accessgraph.RollbackError{Err: errors.New("connection lost")}
		assert.Equal(t, "accessgraph: rollback failed: connection lost", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("timeout")
		err := &accessgraph.RollbackError{Err: underlying}
		assert.True(t, errors.Is(err, underlying))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		err := accessgraph.NewAggregateError()
		assert.Nil(t, err)
	})

	t.Run("NilErrors", func(t *testing.T) {
		err := accessgraph.NewAggregateError(nil, nil, nil)
		assert.Nil(t, err)
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		err := accessgraph.NewAggregateError(single)
		assert.Equal(t, single, err)
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := accessgraph.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
	})

	t.Run("MixedNilAndErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err := accessgraph.NewAggregateError(nil, err1, nil)

		require.NotNil(t, err)
		assert.Equal(t, err1, err) // Single non-nil error returned directly
	})
}

func TestSentinelErrors(t *testing.T) {
	t.Run("ErrNotFound", func(t *testing.T) {
		assert.Error(t, accessgraph.ErrNotFound)
		assert.Contains(t, accessgraph.ErrNotFound.Error(), "not found")
	})

	t.Run("ErrNotSingular", func(t *testing.T) {
		assert.Error(t, accessgraph.ErrNotSingular)
		assert.Contains(t, accessgraph.ErrNotSingular.Error(), "not singular")
	})

	t.Run("ErrTxStarted", func(t *testing.T) {
		assert.Error(t, accessgraph.ErrTxStarted)
		assert.Contains(t, accessgraph.ErrTxStarted.Error(), "transaction")
	})
}

// BenchmarkErrors benchmarks error creation and checking.
func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = accessgraph.NewNotFoundError("User")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := accessgraph.NewNotFoundError("User")
		for i := 0; i < b.N; i++ {
			_ = accessgraph.IsNotFound(err)
		}
	})

	b.Run("NewConstraintError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = accessgraph.NewConstraintError("unique", nil)
		}
	})

	b.Run("IsConstraintError", func(b *testing.B) {
		err := accessgraph.NewConstraintError("unique", nil)
		for i := 0; i < b.N; i++ {
			_ = accessgraph.IsConstraintError(err)
		}
	})

	b.Run("NewValidationError", func(b *testing.B) {
		underlying := errors.New("invalid")
		for i := 0; i < b.N; i++ {
			_ = accessgraph.NewValidationError("field", underlying)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		err3 := errors.New("err3")
		for i := 0; i < b.N; i++ {
			_ = accessgraph.NewAggregateError(err1, err2, err3)
		}
	})
}
