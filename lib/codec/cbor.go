// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrHeader is returned by UnmarshalFramed when data does not start
// with the expected format header.
var ErrHeader = errors.New("codec: missing or unexpected format header")

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, which is what lets a rerun reproduce a
// batch payload byte for byte.
var encMode cbor.EncMode

// decMode accepts standard CBOR but rejects duplicate map keys, so a
// signed payload has exactly one interpretation. Unknown fields are
// ignored for forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Timestamps are carried as integer seconds in explicit fields;
	// a stray time.Time must not silently become a tagged value.
	encOptions.Time = cbor.TimeUnix
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// MarshalFramed returns header followed by the deterministic CBOR
// encoding of v. The header identifies the format version to readers
// that do not speak CBOR.
func MarshalFramed(header string, v any) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, err
	}
	framed := make([]byte, 0, len(header)+len(body))
	framed = append(framed, header...)
	return append(framed, body...), nil
}

// UnmarshalFramed checks that data starts with header and decodes the
// remainder into v. Trailing bytes after the CBOR item are an error.
func UnmarshalFramed(header string, data []byte, v any) error {
	if !bytes.HasPrefix(data, []byte(header)) {
		return ErrHeader
	}
	rest, err := decMode.UnmarshalFirst(data[len(header):], v)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("codec: %d trailing bytes after framed item", len(rest))
	}
	return nil
}
