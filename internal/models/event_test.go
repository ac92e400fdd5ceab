package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingMessageCreatedAt(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T14:07:00Z"`, time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)},
		{"millis", `1714572420000`, time.UnixMilli(1714572420000)},
		{"empty", `""`, time.Time{}},
		{"garbage", `"soon"`, time.Time{}},
		{"null", `null`, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var msg IncomingMessage
			raw := `{"content":"hi","sender":{"_id":"u1"},"createdAt":` + tc.raw + `}`
			require.NoError(t, json.Unmarshal([]byte(raw), &msg))
			assert.Equal(t, "hi", msg.Content)
			assert.Equal(t, "u1", msg.Sender.ID)
			assert.True(t, tc.want.Equal(msg.CreatedAt), "got %v", msg.CreatedAt)
		})
	}
}
