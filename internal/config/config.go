package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// Default configuration values (production)
const (
	DefaultDomain   = "warpcall.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "turn:warpcall.qzz.io"
	DefaultTURNUser = "warpcall"
	DefaultTURNPass = "warpcall-secret"
	DefaultCodec    = protocol.CodecMsgpack
)

// EnvPrefix prefixes every environment variable read by the loaders,
// e.g. WARPCALL_TURN_USER.
const EnvPrefix = "WARPCALL"

// Client holds configuration for the calling CLI.
type Client struct {
	// Domain is the relay server domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to TURN candidates.
	ForceRelay bool

	// Codec frames signaling envelopes ("json" or "msgpack").
	Codec string

	// Insecure dials ws:// instead of wss://. Implied for loopback domains.
	Insecure bool

	// Local capture files. Empty paths send no media of that kind.
	VideoPath string
	AudioPath string

	// RecordDir receives the remote tracks when set.
	RecordDir string
}

// newViper returns a viper instance reading WARPCALL_* variables. legacy maps
// keys to the unprefixed variable names older deployments export.
func newViper(flags *pflag.FlagSet, legacy map[string]string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, env := range legacy {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}
	return v, nil
}

// LoadClient reads configuration with the following priority:
// 1. CLI flags - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
//
// Flags are looked up by name (domain, stun, turn, turn-user, turn-pass,
// relay, codec, insecure, video, audio, record-dir); flags may be nil.
func LoadClient(flags *pflag.FlagSet) (*Client, error) {
	v, err := newViper(flags, map[string]string{
		"domain":    "DOMAIN",
		"stun":      "STUN_SERVER",
		"turn":      "TURN_SERVER",
		"turn-user": "TURN_USERNAME",
		"turn-pass": "TURN_PASSWORD",
	})
	if err != nil {
		return nil, err
	}

	v.SetDefault("domain", DefaultDomain)
	v.SetDefault("stun", DefaultSTUN)
	v.SetDefault("turn", DefaultTURN)
	v.SetDefault("turn-user", DefaultTURNUser)
	v.SetDefault("turn-pass", DefaultTURNPass)
	v.SetDefault("codec", DefaultCodec)

	cfg := &Client{
		Domain:     v.GetString("domain"),
		STUNServer: v.GetString("stun"),
		TURNServer: v.GetString("turn"),
		TURNUser:   v.GetString("turn-user"),
		TURNPass:   v.GetString("turn-pass"),
		ForceRelay: v.GetBool("relay"),
		Codec:      v.GetString("codec"),
		Insecure:   v.GetBool("insecure"),
		VideoPath:  v.GetString("video"),
		AudioPath:  v.GetString("audio"),
		RecordDir:  v.GetString("record-dir"),
	}

	if _, err := protocol.CodecByName(cfg.Codec); err != nil {
		return nil, err
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	scheme := "wss"
	if cfg.Insecure || isLoopback(cfg.Domain) {
		scheme = "ws"
	}
	cfg.WebSocketURL = fmt.Sprintf("%s://%s/ws?codec=%s", scheme, cfg.Domain, cfg.Codec)

	return cfg, nil
}

func isLoopback(domain string) bool {
	host := domain
	if h, _, err := net.SplitHostPort(domain); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// GetRoomLink returns the webapp URL for a room ID
func (c *Client) GetRoomLink(roomID string) string {
	return fmt.Sprintf("https://%s/r/%s", c.Domain, roomID)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Client) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
