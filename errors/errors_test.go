package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("test error")
	require.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf("error: %s %d", "test", 42)
	require.NotNil(t, err)
	assert.Equal(t, "error: test 42", err.Error())
}

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
}

func TestWithDetail(t *testing.T) {
	err := New("base")
	err = WithDetail(err, "Job ID: JOB-001")
	err = WithDetail(err, "Instance: worker0")

	details := GetAllDetails(err)
	require.Len(t, details, 2)
	assert.Contains(t, details, "Job ID: JOB-001")
}

func TestIsThroughWrapping(t *testing.T) {
	sentinel := New("sentinel")
	err := Wrapf(sentinel, "attempt %d", 3)
	err = fmt.Errorf("outer: %w", err)

	assert.True(t, Is(err, sentinel))
}
