package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	ts := time.Date(2024, 6, 10, 12, 30, 0, 123456789, time.FixedZone("EST", -5*3600))
	c := EncodeCursor(ts, "a1b2c3d4e5f6")

	gotTS, gotID, err := DecodeCursor(c)
	require.NoError(t, err)
	require.True(t, ts.Equal(gotTS))
	require.Equal(t, time.UTC, gotTS.Location())
	require.Equal(t, "a1b2c3d4e5f6", gotID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, c := range []string{
		"%%%",
		base64.URLEncoding.EncodeToString([]byte("no-separator")),
		base64.URLEncoding.EncodeToString([]byte("2024-06-10T12:00:00Z,")),
		base64.URLEncoding.EncodeToString([]byte("yesterday,abc")),
	} {
		_, _, err := DecodeCursor(c)
		require.Error(t, err, c)
	}
}
