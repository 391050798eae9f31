// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bytedance/sonic"
)

// Key derives a stable cache key from parts.
//
// Parts are encoded with sorted map keys so that equal inputs always hash to the same key.
func Key(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		b, err := sonic.ConfigStd.Marshal(p)
		if err != nil {
			b = []byte(fmt.Sprintf("%#v", p))
		}
		h.Write(b)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
