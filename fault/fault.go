package fault

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every error kind registered by this module.
const Codespace = "mbfs"

var (
	// ErrFormat reports malformed input: record syntax, checksums, lengths,
	// record types, overlapping blocks, misplaced End Of File records and
	// missing device metadata.
	ErrFormat = errorsmod.Register(Codespace, 2, "invalid format")

	// ErrCapacity reports that the filesystem has no room left.
	ErrCapacity = errorsmod.Register(Codespace, 3, "not enough storage space")

	// ErrIntegrity reports a corrupted filesystem: broken chunk links,
	// overlong chains or duplicated file names.
	ErrIntegrity = errorsmod.Register(Codespace, 4, "filesystem integrity")

	// ErrUsage reports a caller mistake such as an empty file name, a missing
	// file or an ambiguous board selection.
	ErrUsage = errorsmod.Register(Codespace, 5, "invalid usage")

	// ErrConsistency reports boards of one Universal Hex carrying different files.
	ErrConsistency = errorsmod.Register(Codespace, 6, "inconsistent images")

	// ErrNotImplemented is returned by operations that are not supported.
	ErrNotImplemented = errorsmod.Register(Codespace, 7, "not implemented")
)

var kinds = []*errorsmod.Error{
	ErrFormat,
	ErrCapacity,
	ErrIntegrity,
	ErrUsage,
	ErrConsistency,
	ErrNotImplemented,
}

// KindOf returns the registered kind err belongs to, or nil when err was not
// produced by this module.
func KindOf(err error) *errorsmod.Error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Formatf wraps ErrFormat with a formatted message.
func Formatf(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrFormat, format, args...)
}

// Capacityf wraps ErrCapacity with a formatted message.
func Capacityf(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrCapacity, format, args...)
}

// Integrityf wraps ErrIntegrity with a formatted message.
func Integrityf(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrIntegrity, format, args...)
}

// Usagef wraps ErrUsage with a formatted message.
func Usagef(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrUsage, format, args...)
}

// Consistencyf wraps ErrConsistency with a formatted message.
func Consistencyf(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrConsistency, format, args...)
}

// NotImplementedf wraps ErrNotImplemented with a formatted message.
func NotImplementedf(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrNotImplemented, format, args...)
}
