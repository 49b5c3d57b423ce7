package cursor

import (
	"encoding/base64"

	"golang.org/x/crypto/nacl/secretbox"
)

// The key and nonce below are part of the token format: every opaque cursor
// ever issued was sealed with them. Changing either value invalidates all
// persisted cursors.
//
// This is obfuscation with tamper detection, not confidentiality. A fixed
// nonce is a fatal flaw for real encryption and must not be copied elsewhere.
var opaqueCursorEncryptionKey = [32]byte{
	0x7b, 0xfc, 0xac, 0xee, 0x25, 0x74, 0x09, 0x09, 0x9e, 0xdd, 0x2b, 0xb6, 0xa4, 0x42, 0x63, 0x8b,
	0x55, 0x9a, 0x80, 0xbf, 0xbf, 0xc0, 0xb9, 0xac, 0xde, 0xa0, 0xd8, 0x34, 0x4b, 0x10, 0xeb, 0x00,
}

var fixedNonce = [24]byte{
	0x26, 0x15, 0x54, 0xc4, 0x5a, 0xb9, 0xb7, 0x52, 0xab, 0xad, 0x4f, 0x19, 0xc2, 0x42, 0x60, 0x57,
	0x02, 0xd5, 0x5a, 0x0d, 0x91, 0x61, 0x6a, 0x1b,
}

var tokenEncoding = base64.URLEncoding

// EncodeOpaque seals the bytes and returns them as a URL safe token.
func EncodeOpaque(in []byte) string {
	sealed := secretbox.Seal(nil, in, &fixedNonce, &opaqueCursorEncryptionKey)
	return tokenEncoding.EncodeToString(sealed)
}

// DecodeOpaque reverses EncodeOpaque. A token that was altered in any way
// fails authentication and is reported as a *DecodeError.
func DecodeOpaque(token string) ([]byte, error) {
	sealed, err := tokenEncoding.DecodeString(token)
	if err != nil {
		return nil, newDecodeError(ReasonInvalidEncoding, token, err)
	}

	out, ok := secretbox.Open(nil, sealed, &fixedNonce, &opaqueCursorEncryptionKey)
	if !ok {
		return nil, newDecodeError(ReasonAuthentication, token, nil)
	}

	return out, nil
}
