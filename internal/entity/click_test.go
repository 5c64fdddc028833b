package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{
			name: "ipv4",
			addr: "203.0.113.42",
			want: "203.0.113.0",
		},
		{
			name: "ipv4 with port",
			addr: "203.0.113.42:52114",
			want: "203.0.113.0",
		},
		{
			name: "ipv4 mapped ipv6",
			addr: "::ffff:203.0.113.42",
			want: "203.0.113.0",
		},
		{
			name: "ipv6",
			addr: "2001:db8:85a3:8d3:1319:8a2e:370:7348",
			want: "2001:db8:85a3:8d3::",
		},
		{
			name: "ipv6 with port",
			addr: "[2001:db8::1]:443",
			want: "2001:db8::",
		},
		{
			name: "empty",
			addr: "",
			want: "0.0.0.0",
		},
		{
			name: "garbage",
			addr: "not an ip",
			want: "0.0.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.addr))
		})
	}
}

func TestNewClick(t *testing.T) {
	now := time.Date(2025, 5, 29, 12, 0, 0, 0, time.UTC)

	t.Run("full visitor", func(t *testing.T) {
		c := NewClick(7, Visitor{
			IPAddress: "198.51.100.7",
			UserAgent: "curl/8.0",
			Referrer:  "https://news.example.com",
		}, now)

		assert.Equal(t, int64(7), c.URLID)
		assert.Equal(t, "198.51.100.0", c.IPAddress)
		assert.Equal(t, "curl/8.0", c.UserAgent)
		if assert.NotNil(t, c.Referrer) {
			assert.Equal(t, "https://news.example.com", *c.Referrer)
		}
		assert.Equal(t, now, c.ClickedAt)
	})

	t.Run("empty visitor", func(t *testing.T) {
		c := NewClick(7, Visitor{}, now)

		assert.Equal(t, "0.0.0.0", c.IPAddress)
		assert.Equal(t, "Unknown", c.UserAgent)
		assert.Nil(t, c.Referrer)
	})
}

func TestURL_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&URL{}).IsExpired(now))
	assert.True(t, (&URL{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&URL{ExpiresAt: &future}).IsExpired(now))
	assert.False(t, (&URL{ExpiresAt: &now}).IsExpired(now))
}

func TestIsReservedShortCode(t *testing.T) {
	for _, code := range []string{"api", "docs", "swagger"} {
		assert.True(t, IsReservedShortCode(code), code)
	}

	for _, code := range []string{"API", "apis", "abc123"} {
		assert.False(t, IsReservedShortCode(code), code)
	}
}
