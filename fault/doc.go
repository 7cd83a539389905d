// Package fault defines the error kinds shared by every package of the module.
//
// Each kind is registered under the "mbfs" codespace with cosmossdk.io/errors,
// so callers can match failures with errors.Is no matter how much context was
// wrapped around them:
//
//	m, err := ihex.Decode(text)
//	if errors.Is(err, fault.ErrFormat) {
//	    // the hex text is malformed
//	}
//
// Packages that need richer context define their own error structs (for
// example ihex.RecordError or mpfs.ChunkLinkError) whose Unwrap method returns
// one of these kinds.
package fault
