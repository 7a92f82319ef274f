// Package ir holds the value types shared by every mosaic package: caller
// identities, tiles, and the canonical JSON encoding used to derive
// content-addressed command ids and board state digests.
//
// ir imports nothing internal. Other internal packages import ir.
//
// Key constraints:
//   - No floats in canonical JSON; numbers are int64
//   - Caller identities are NFC normalised before they are compared or stored
//   - Ordering comes from the logical seq, never from wall-clock time
package ir
