package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// TagFormat selects how tags are encoded on the wire.
type TagFormat string

const (
	// TagsDogStatsD appends "|#k:v,k:v" after the metric type.
	TagsDogStatsD TagFormat = "dogstatsd"
	// TagsTelegraf appends ",k=v" to the metric name.
	TagsTelegraf TagFormat = "telegraf"
	// TagsNone drops tags for plain StatsD servers.
	TagsNone TagFormat = "none"
)

// ParseTagFormat maps a config value onto a TagFormat. Empty means DogStatsD.
func ParseTagFormat(raw string) (TagFormat, error) {
	switch f := TagFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return TagsDogStatsD, nil
	case TagsDogStatsD, TagsTelegraf, TagsNone:
		return f, nil
	default:
		return "", fmt.Errorf("unknown statsd tag format %q", raw)
	}
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled    bool
	Address    string
	Prefix     string
	TagFormat  TagFormat
	Logger     *slog.Logger
	GlobalTags map[string]string
}

// Client emits metrics over UDP using the StatsD line protocol.
// It is safe for concurrent use. A nil *Client discards everything.
type Client struct {
	prefix     string
	format     TagFormat
	globalTags map[string]string
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient dials the configured endpoint. A disabled config yields a client
// that discards writes.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	format := cfg.TagFormat
	if format == "" {
		format = TagsDogStatsD
	}
	c := &Client{
		prefix:     sanitizePrefix(cfg.Prefix),
		format:     format,
		globalTags: cloneTags(cfg.GlobalTags),
		logger:     logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return c, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	c.conn = conn
	return c, nil
}

// Enabled reports whether the client has a live connection.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.send(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.send(name, formatFloat(value), "g", tags)
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	c.send(name, formatFloat(float64(value)/float64(time.Millisecond)), "ms", tags)
}

// Close releases the UDP connection. Later writes are discarded.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) send(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	metric := c.metricName(name)
	if metric == "" {
		return
	}
	line := c.line(metric, value, kind, mergeTags(c.globalTags, tags))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd write failed", "metric", metric, "error", err)
	}
}

// line renders one packet. Tags arrive merged and sorted by key.
func (c *Client) line(metric, value, kind string, tags [][2]string) string {
	var b strings.Builder
	b.WriteString(metric)
	if c.format == TagsTelegraf {
		for _, kv := range tags {
			b.WriteString("," + kv[0] + "=" + kv[1])
		}
	}
	b.WriteString(":" + value + "|" + kind)
	if c.format == TagsDogStatsD && len(tags) > 0 {
		b.WriteString("|#")
		for i, kv := range tags {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(kv[0] + ":" + kv[1])
		}
	}
	return b.String()
}

func (c *Client) metricName(name string) string {
	n := normalizeMetricName(name)
	switch {
	case n == "":
		return ""
	case c.prefix == "":
		return n
	default:
		return c.prefix + "." + n
	}
}

func sanitizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), ".")
}

func normalizeMetricName(name string) string {
	n := strings.TrimSpace(name)
	n = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_").Replace(n)
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// tagReplacer strips the separators every tag format relies on.
var tagReplacer = strings.NewReplacer("|", "_", ",", "_", ":", "_", "=", "_", "#", "_", " ", "_")

// mergeTags overlays local on global and returns sanitized pairs sorted by key.
func mergeTags(global, local map[string]string) [][2]string {
	if len(global)+len(local) == 0 {
		return nil
	}
	merged := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		if key := strings.TrimSpace(k); key != "" {
			merged[key] = strings.TrimSpace(v)
		}
	}
	out := make([][2]string, 0, len(merged))
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, [2]string{tagReplacer.Replace(k), tagReplacer.Replace(merged[k])})
	}
	return out
}

func cloneTags(tags map[string]string) map[string]string {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			cp[key] = strings.TrimSpace(v)
		}
	}
	return cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
