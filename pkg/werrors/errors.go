// Package werrors defines the structured error type the wallet engine
// raises for every documented failure kind.
package werrors

import (
	"errors"
	"fmt"
)

// Kind identifies a documented failure category. Callers should match on
// Kind via As, not on error message text.
type Kind string

// Error kinds raised by the wallet engine.
const (
	KindInvalidMnemonic      Kind = "InvalidMnemonic"
	KindInvalidPath          Kind = "InvalidPath"
	KindDerivationOutOfRange Kind = "DerivationOutOfRange"
	KindUnsupportedBip       Kind = "UnsupportedBip"
	KindInvalidRecipient     Kind = "InvalidRecipient"
	KindBelowDustLimit       Kind = "BelowDustLimit"
	KindNoUnspentOutputs     Kind = "NoUnspentOutputs"
	KindInsufficientBalance  Kind = "InsufficientBalance"
	KindMalformedSignature   Kind = "MalformedSignature"
	KindUnsupportedOperation Kind = "UnsupportedOperation"
	KindDisposedAccount      Kind = "DisposedAccount"
	KindDisposedWallet       Kind = "DisposedWallet"
	KindNetworkFailure       Kind = "NetworkFailure"
)

// WalletError is the structured error type for the wallet engine.
type WalletError struct {
	Kind    Kind
	Message string
	Op      string // operation name, populated for UnsupportedOperation
	Cause   error
}

func (e *WalletError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s(%q)", msg, e.Op)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is reports equality by Kind, matching the teacher error-package idiom
// of comparing sentinel codes rather than pointer identity.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New constructs a WalletError of the given kind.
func New(kind Kind, message string) *WalletError {
	return &WalletError{Kind: kind, Message: message}
}

// Wrap constructs a WalletError of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *WalletError {
	return &WalletError{Kind: kind, Message: message, Cause: cause}
}

// UnsupportedOperation builds the UnsupportedOperation(name) error.
func UnsupportedOperation(op string) *WalletError {
	return &WalletError{Kind: KindUnsupportedOperation, Message: "operation not supported", Op: op}
}

// NetworkFailure wraps a transport-layer cause as a NetworkFailure.
func NetworkFailure(cause error) *WalletError {
	return &WalletError{Kind: KindNetworkFailure, Message: "electrum request failed", Cause: cause}
}

// OfKind reports whether err is a WalletError of the given kind.
func OfKind(err error, kind Kind) bool {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Kind == kind
	}
	return false
}
