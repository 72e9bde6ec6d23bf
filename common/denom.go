package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
)

// FactoryDenomPrefix is a namespace every denomination managed by the
// issuance authority starts with.
const FactoryDenomPrefix = "factory/"

// ErrInvalidDenom is thrown when a denomination is not a factory one.
const ErrInvalidDenom = "invalid denom: must start with '" + FactoryDenomPrefix + "'"

// ErrInvalidAddress is thrown when an account identifier is not a 20-byte
// script hash.
const ErrInvalidAddress = "invalid address"

// IsFactoryDenom checks whether denom starts with FactoryDenomPrefix.
func IsFactoryDenom(denom string) bool {
	if len(denom) < len(FactoryDenomPrefix) {
		return false
	}
	return std.MemorySearch([]byte(denom), []byte(FactoryDenomPrefix)) == 0
}

// CheckFactoryDenom panics with ErrInvalidDenom if denom is not a factory one.
func CheckFactoryDenom(denom string) {
	if !IsFactoryDenom(denom) {
		panic(ErrInvalidDenom)
	}
}

// CheckAddress panics with ErrInvalidAddress if h is not a valid script hash.
func CheckAddress(h interop.Hash160) {
	if len(h) != interop.Hash160Len {
		panic(ErrInvalidAddress)
	}
}
