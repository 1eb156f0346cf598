package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen returns a UDP listener and a function reading one packet from it.
func listen(t *testing.T) (string, func() string) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	return pc.LocalAddr().String(), func() string {
		t.Helper()
		buf := make([]byte, 1024)
		require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}
}

func TestClient_WireFormats(t *testing.T) {
	tags := map[string]string{"outcome": "denied", "error_class": "net_operror|x"}
	tests := []struct {
		format TagFormat
		emit   func(c *Client)
		want   string
	}{
		{TagsDogStatsD, func(c *Client) { c.Count("http.request", 1, tags) },
			"portal_gate.http.request:1|c|#env:test,error_class:net_operror_x,outcome:denied"},
		{TagsTelegraf, func(c *Client) { c.Timing("http.duration", 1500*time.Microsecond, tags) },
			"portal_gate.http.duration,env=test,error_class=net_operror_x,outcome=denied:1.5|ms"},
		{TagsNone, func(c *Client) { c.Gauge("toast.queue", 3, tags) },
			"portal_gate.toast.queue:3|g"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			addr, read := listen(t)
			c, err := NewClient(Config{
				Enabled:    true,
				Address:    addr,
				Prefix:     ".portal_gate.",
				TagFormat:  tt.format,
				GlobalTags: map[string]string{"env": "test"},
			})
			require.NoError(t, err)
			t.Cleanup(func() { _ = c.Close() })

			tt.emit(c)
			assert.Equal(t, tt.want, read())
		})
	}
}

func TestClient_LocalTagsOverrideGlobal(t *testing.T) {
	addr, read := listen(t)
	c, err := NewClient(Config{Enabled: true, Address: addr, GlobalTags: map[string]string{" env ": " prod "}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	c.Count("session.resolve", 2, map[string]string{"env": "stage", "": "ignored"})
	assert.Equal(t, "session.resolve:2|c|#env:stage", read())
}

func TestParseTagFormat(t *testing.T) {
	for raw, want := range map[string]TagFormat{
		"":           TagsDogStatsD,
		" Telegraf ": TagsTelegraf,
		"none":       TagsNone,
	} {
		got, err := ParseTagFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseTagFormat("graphite")
	require.Error(t, err)
}

func TestNormalizeMetricName(t *testing.T) {
	tests := map[string]string{
		" job/metric ":  "job_metric",
		"foo..bar":      "foo.bar",
		"multi  space":  "multi__space",
		"a:b|c":         "a_b_c",
		"..":            "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeMetricName(input), input)
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{conn: clientConn}
	assert.True(t, c.Enabled())
	require.NoError(t, c.Close())
	assert.False(t, c.Enabled())
	require.NoError(t, c.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
	assert.NotPanics(t, func() { nilClient.Count("x", 1, nil) })
}

func TestNewClient_DisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() { c.Count("x", 1, nil) })
}

func TestNewClient_DialError(t *testing.T) {
	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.ErrorContains(t, err, "statsd dial")
}
