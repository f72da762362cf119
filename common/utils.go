/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
)

// StringOrNil returns the given string or nil when empty
func StringOrNil(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

// Uint64OrNil returns a pointer to a copy of the given value
func Uint64OrNil(val *uint64) *uint64 {
	if val == nil {
		return nil
	}
	v := *val
	return &v
}

// SHA256Bytes returns the hex-encoded sha256 digest of the given bytes
func SHA256Bytes(val []byte) string {
	digest := sha256.Sum256(val)
	return hex.EncodeToString(digest[:])
}

// NormalizeAccount returns the canonical form of an account address
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// GnarkCurveIDFactory returns an ecc curve id corresponding to the input name;
// names are matched case-insensitively
func GnarkCurveIDFactory(curveID *string) ecc.ID {
	if curveID == nil {
		return ecc.UNKNOWN
	}

	name := strings.TrimSpace(*curveID)
	for _, id := range ecc.Implemented() {
		if strings.EqualFold(name, id.String()) {
			return id
		}
	}
	return ecc.UNKNOWN
}
