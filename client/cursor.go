package client

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// cursorTokenVersion guards against decoding a token produced by an
// incompatible future encoding; bump it if the wire shape ever changes.
const cursorTokenVersion = 1

type cursorToken struct {
	V      int `msgpack:"v"`
	Fields M   `msgpack:"f"`
}

// EncodeCursor packs fields (the ordered tuple of field->value pairs a
// keyset-pagination cursor needs) into the opaque, URL-safe token Page's
// NextCursor/PrevCursor carry. Callers treat the result as opaque; decode
// it with DecodeCursor before passing it back as FindArgs.Cursor.
func EncodeCursor(fields M) (string, error) {
	b, err := msgpack.Marshal(cursorToken{V: cursorTokenVersion, Fields: fields})
	if err != nil {
		return "", fmt.Errorf("client: encoding cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor reverses EncodeCursor, returning the field->value map to
// assign to FindArgs.Cursor.
func DecodeCursor(token string) (M, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("client: decoding cursor: %w", err)
	}
	var t cursorToken
	if err := msgpack.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("client: decoding cursor: %w", err)
	}
	if t.V != cursorTokenVersion {
		return nil, fmt.Errorf("client: cursor token version %d is not supported", t.V)
	}
	return t.Fields, nil
}
