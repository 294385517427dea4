// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package pooltx

import "encoding/hex"

func hexToBytes(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
