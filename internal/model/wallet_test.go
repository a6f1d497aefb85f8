package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWalletLowercasesHex(t *testing.T) {
	w, err := NormalizeWallet(" 0x52908400098527886E0F7030069857D2E4169EE7 ")
	require.NoError(t, err)
	assert.Equal(t, "0x52908400098527886e0f7030069857d2e4169ee7", w)

	w, err = NormalizeWallet("So11111111111111111111111111111111111111112")
	require.NoError(t, err)
	assert.Equal(t, "So11111111111111111111111111111111111111112", w)

	_, err = NormalizeWallet("0x1234")
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestWalletKey(t *testing.T) {
	assert.Equal(t, "0xabcdef", WalletKey("0XABCDEF"))
	assert.Equal(t, WalletKey("0x52908400098527886E0F7030069857D2E4169EE7"), WalletKey("0x52908400098527886e0f7030069857d2e4169ee7"))
	assert.Equal(t, "So11111111111111111111111111111111111111112", WalletKey("So11111111111111111111111111111111111111112"))
}
