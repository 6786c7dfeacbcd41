// Package snapshot persists corpus state to a self-describing binary format.
//
// A snapshot file carries its codec and compression names in the header, so a
// reader never has to guess how the payload was produced. Changing the codec
// is a breaking-change boundary: bytes written by an unknown codec fail to
// load with ErrUnknownCodec instead of decoding garbage.
package snapshot
