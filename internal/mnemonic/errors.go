package mnemonic

import (
	"fmt"

	"github.com/coreledger/btcwallet/pkg/werrors"
)

func errInvalidWordCount(n int) error {
	return werrors.New(werrors.KindInvalidMnemonic, fmt.Sprintf("unsupported mnemonic word count %d", n))
}

func errInvalidMnemonic() error {
	return werrors.New(werrors.KindInvalidMnemonic, "mnemonic failed BIP-39 validation")
}
