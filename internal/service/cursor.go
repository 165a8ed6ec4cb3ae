package service

import (
	"encoding/base64"
	"fmt"
)

// DecodeCursor decodes a base64-encoded cursor into the component
// identifier the previous page ended at. An empty cursor decodes to an
// empty identifier, meaning the listing starts from the beginning.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("failed to decode cursor: %w", err)
	}

	return string(decoded), nil
}

// EncodeCursor encodes the identifier of the last component on a page
// into an opaque cursor for the next request.
func EncodeCursor(componentID string) string {
	return base64.StdEncoding.EncodeToString([]byte(componentID))
}
