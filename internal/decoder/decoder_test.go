// Package decoder_test tests the external decode adapter.
package decoder_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/corpus-prep/internal/decoder"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "decoder-test.log")
	require.NoError(t, err)

	return log
}

func TestNewRejectsEmptyCommand(t *testing.T) {
	t.Parallel()

	_, err := decoder.New("", nil, newTestLogger(t))
	require.ErrorIs(t, err, decoder.ErrCommandEmpty)
}

func TestDecodeSurfacesProcessFailure(t *testing.T) {
	t.Parallel()

	dec, err := decoder.New("corpus-prep-nonexistent-decoder", nil, newTestLogger(t))
	require.NoError(t, err)

	err = dec.Decode(context.Background(), t.TempDir(), t.TempDir())
	require.ErrorIs(t, err, decoder.ErrDecodeFailed)
}

func TestDecodeSuccess(t *testing.T) {
	t.Parallel()

	dec, err := decoder.New("true", nil, newTestLogger(t))
	require.NoError(t, err)

	err = dec.Decode(context.Background(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
}
