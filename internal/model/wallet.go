package model

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

var ErrInvalidWallet = errors.New("wallet address must be a base58 ed25519 public key or a 0x-prefixed hex address")

// NormalizeWallet trims the identifier and checks it is a well-formed wallet:
// a base58 string decoding to 32 bytes (Solana) or a 20-byte hex address.
// Hex addresses come back lowercase; base58 is case-sensitive and kept as is.
func NormalizeWallet(raw string) (string, error) {
	wallet := strings.TrimSpace(raw)
	if wallet == "" {
		return "", errors.New("wallet address is required")
	}
	if IsHexWallet(wallet) {
		if !common.IsHexAddress(wallet) {
			return "", ErrInvalidWallet
		}
		return strings.ToLower(common.HexToAddress(wallet).Hex()), nil
	}
	decoded, err := base58.Decode(wallet)
	if err != nil || len(decoded) != 32 {
		return "", ErrInvalidWallet
	}
	return wallet, nil
}

// IsHexWallet reports whether w is written as a 0x address.
func IsHexWallet(w string) bool {
	return strings.HasPrefix(w, "0x") || strings.HasPrefix(w, "0X")
}

// WalletKey is the lookup key stores use: hex addresses match in any case.
func WalletKey(w string) string {
	w = strings.TrimSpace(w)
	if IsHexWallet(w) {
		return strings.ToLower(w)
	}
	return w
}
