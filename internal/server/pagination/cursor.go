package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const cursorSeparator = ","
const timeFormat = time.RFC3339Nano

// EncodeCursor creates an opaque cursor from the creation time and id of the
// last document on a page.
func EncodeCursor(ts time.Time, id string) string {
	key := ts.UTC().Format(timeFormat) + cursorSeparator + id
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses a cursor made by EncodeCursor.
func DecodeCursor(encodedCursor string) (time.Time, string, error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(encodedCursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), cursorSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return time.Time{}, "", errors.New("invalid cursor format")
	}

	ts, err := time.Parse(timeFormat, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid timestamp in cursor: %w", err)
	}
	return ts.UTC(), parts[1], nil
}
