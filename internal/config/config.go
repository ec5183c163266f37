package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultServer    = "ws://localhost:8765/ws"
	DefaultPort      = 8765
	DefaultSTUN      = "stun:stun.l.google.com:19302"
	DefaultTimeout   = 30 * time.Second
	DefaultOutputDir = "."
)

// Config holds application configuration
type Config struct {
	// ServerURL is the broker's websocket endpoint
	ServerURL string

	// Port the broker listens on (serve only)
	Port int

	// ICE server for WebRTC
	STUNServer string

	// Sources are the media files offered by the sender
	Sources []string

	// SaveOutput makes the receiver write incoming media to OutputDir
	SaveOutput bool
	OutputDir  string

	// NegotiationTimeout bounds the wait for the peer's descriptor
	NegotiationTimeout time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	Server     string
	Port       int
	STUNServer string
	Source     string
	Save       bool
	OutputDir  string
	Timeout    time.Duration
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	server := firstNonEmpty(opts.Server, os.Getenv("WARPCAST_SERVER"), DefaultServer)
	serverURL, err := NormalizeServerURL(server)
	if err != nil {
		return nil, err
	}

	port := opts.Port
	if port == 0 {
		if env := os.Getenv("WARPCAST_PORT"); env != "" {
			port, err = strconv.Atoi(env)
			if err != nil {
				return nil, fmt.Errorf("invalid WARPCAST_PORT %q: %w", env, err)
			}
		}
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("port %d out of range", port)
	}

	save := opts.Save
	if !save {
		if env := os.Getenv("WARPCAST_SAVE"); env != "" {
			save, err = strconv.ParseBool(env)
			if err != nil {
				return nil, fmt.Errorf("invalid WARPCAST_SAVE %q: %w", env, err)
			}
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		if env := os.Getenv("WARPCAST_TIMEOUT"); env != "" {
			timeout, err = time.ParseDuration(env)
			if err != nil {
				return nil, fmt.Errorf("invalid WARPCAST_TIMEOUT %q: %w", env, err)
			}
		}
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < 0 {
		return nil, fmt.Errorf("negative negotiation timeout %s", timeout)
	}

	return &Config{
		ServerURL:          serverURL,
		Port:               port,
		STUNServer:         firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		Sources:            SplitSources(firstNonEmpty(opts.Source, os.Getenv("WARPCAST_SOURCE"))),
		SaveOutput:         save,
		OutputDir:          firstNonEmpty(opts.OutputDir, os.Getenv("WARPCAST_OUTPUT_DIR"), DefaultOutputDir),
		NegotiationTimeout: timeout,
	}, nil
}

// ListenAddr returns the broker's listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// NormalizeServerURL turns "host:port", http(s) and bare ws(s) URLs into the
// broker's websocket endpoint.
func NormalizeServerURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server URL %q has no host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// SplitSources parses a comma separated list of media files
func SplitSources(s string) []string {
	var sources []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			sources = append(sources, part)
		}
	}
	return sources
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
