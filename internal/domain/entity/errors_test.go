package entity

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineError_Is(t *testing.T) {
	err := NewError(ErrDecode, "preprocess", io.ErrUnexpectedEOF)

	require.ErrorIs(t, err, ErrDecode)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.NotErrorIs(t, err, ErrShape)
	require.Equal(t, "preprocess: decode error: unexpected EOF", err.Error())
}

func TestErrSessionNotReady_IsInference(t *testing.T) {
	require.ErrorIs(t, ErrSessionNotReady, ErrInference)
}

func TestReason(t *testing.T) {
	require.Equal(t, "", Reason(nil))
	require.Equal(t, "model not ready", Reason(ErrSessionNotReady))
	require.Equal(t, "unexpected image size", Reason(NewError(ErrShape, "preprocess", nil)))
	require.Equal(t, "camera permission denied", Reason(NewError(ErrPermission, "camera", nil)))
	require.Equal(t, "boom", Reason(errors.New("boom")))
}
