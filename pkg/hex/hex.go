// Package hex wraps encoding/hex with the Enc/Dec names used pervasively
// across the nostrmq packages, so hex handling reads the same everywhere
// keys, ids and signatures cross a string/[]byte boundary.
package hex

import "encoding/hex"

// Enc encodes b as a lowercase hexadecimal string.
func Enc(b []byte) string { return hex.EncodeToString(b) }

// Dec decodes a hexadecimal string to bytes.
func Dec(s string) ([]byte, error) { return hex.DecodeString(s) }
