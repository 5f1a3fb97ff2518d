package cerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSerializationUnwrap(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := NewSerialization("decode content metadata", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "decode content metadata")
}

func TestDatabaseErrorFormatting(t *testing.T) {
	err := NewDatabaseError("parent content %q not found", "doc-1")
	assert.Equal(t, `parent content "doc-1" not found`, err.Error())

	var dbErr *DatabaseError
	assert.True(t, errors.As(err, &dbErr))
}

func TestTransactionErrorFormatting(t *testing.T) {
	err := NewTransactionError("commit failed: %v", errors.New("disk full"))
	assert.Equal(t, "commit failed: disk full", err.Error())

	var txnErr *TransactionError
	assert.True(t, errors.As(err, &txnErr))
}
