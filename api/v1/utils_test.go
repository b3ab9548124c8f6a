package v1

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ipv4", raw: "79.144.65.173", want: "79.144.65.173"},
		{name: "quoted ipv4 with port", raw: "\"79.144.65.173:1234\"", want: "79.144.65.173"},
		{name: "ipv6 with port", raw: "[2001:db8::1]:8443", want: "2001:db8::1"},
		{name: "ipv6 in brackets", raw: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "ipv6 with zone", raw: "fe80::1%eth0", want: "fe80::1"},
		{name: "ipv4 mapped ipv6", raw: "::ffff:203.0.113.9", want: "203.0.113.9"},
		{name: "invalid value", raw: "not-an-ip", want: ""},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			addr, ok := normalizeIP(tc.raw)
			if tc.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, addr.String())
		})
	}
}

func TestSelectPreferredIP(t *testing.T) {
	assert.Equal(t, "203.0.113.20", selectPreferredIP([]string{"2001:db8::1", "203.0.113.20"}))
	assert.Equal(t, "198.51.100.7", selectPreferredIP([]string{"192.168.1.10", "10.0.0.5", "::1", "198.51.100.7"}))
	assert.Equal(t, "2001:db8::2", selectPreferredIP([]string{"2001:db8::2"}))
	assert.Equal(t, "", selectPreferredIP([]string{"", "::ffff:192.168.1.5", "not-an-ip"}))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "forwarded for chain", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 198.51.100.4"}, want: "198.51.100.4"},
		{name: "cloudflare header", headers: map[string]string{"CF-Connecting-IP": "203.0.113.7"}, want: "203.0.113.7"},
		{name: "forwarded header", headers: map[string]string{"Forwarded": "for=\"[2001:db8::9]:4711\";proto=https"}, want: "2001:db8::9"},
		{name: "private only", headers: map[string]string{"X-Forwarded-For": "127.0.0.1"}, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return c.SendString(clientIP(c))
			})

			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(body))
		})
	}
}
