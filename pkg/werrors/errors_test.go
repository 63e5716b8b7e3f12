package werrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfKind_matchesWrappedError(t *testing.T) {
	base := New(KindBelowDustLimit, "too small")
	wrapped := errors.Join(base, errors.New("context"))
	assert.True(t, OfKind(wrapped, KindBelowDustLimit))
	assert.False(t, OfKind(wrapped, KindNetworkFailure))
}

func TestWrap_unwrapsToCause(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(KindNetworkFailure, "call failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestUnsupportedOperation_carriesOpName(t *testing.T) {
	err := UnsupportedOperation("getTokenBalance")
	var werr *WalletError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "getTokenBalance", werr.Op)
	assert.Equal(t, KindUnsupportedOperation, werr.Kind)
}

func TestNetworkFailure_wrapsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := NetworkFailure(cause)
	assert.True(t, OfKind(err, KindNetworkFailure))
	assert.ErrorIs(t, err, cause)
}
