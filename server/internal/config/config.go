package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

// Provider types accepted in providers[].type. "forward" is an alias of
// "webhook".
const (
	TypeWebhook = "webhook"
	TypeForward = "forward"
	TypeBot     = "bot"
)

// Default values for the configuration.
const (
	DefaultPort         = 3000
	DefaultHTTPTimeout  = model.Duration(10 * time.Second)
	DefaultUTCOffset    = 8 * time.Hour
	DefaultUserCacheTTL = model.Duration(time.Hour)
)

// Config is the whole config.yaml.
type Config struct {
	Server    ServerConfig `yaml:"server"`
	Providers []Provider   `yaml:"providers"`
}

// ServerConfig holds process-wide settings.
type ServerConfig struct {
	// Port is the HTTP listen port (default 3000). The PORT environment
	// variable overrides it.
	Port int `yaml:"port"`

	// HTTPTimeout bounds every outbound request (default 10s).
	HTTPTimeout model.Duration `yaml:"httpTimeout"`

	// UTCOffset is the fixed zone offset card timestamps are rendered in
	// (default 8h).
	UTCOffset time.Duration `yaml:"utcOffset"`
}

// Location returns the fixed zone described by UTCOffset.
func (s ServerConfig) Location() *time.Location {
	if s.UTCOffset == DefaultUTCOffset {
		return time.FixedZone("CST", int(s.UTCOffset.Seconds()))
	}
	return time.FixedZone(formatOffset(s.UTCOffset), int(s.UTCOffset.Seconds()))
}

func formatOffset(d time.Duration) string {
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, int(d.Hours()), int(d.Minutes())%60)
}

// Provider is one entry of providers[].
type Provider struct {
	// Name is a human-readable label used in logs and metrics.
	Name string `yaml:"name"`

	// Hash is the opaque routing key taken from the request path
	// (/webhook/alert/{hash}, /webhook/callback/{hash}).
	Hash string `yaml:"hash"`

	// Type selects the client: webhook (alias forward) or bot.
	Type string `yaml:"type"`

	// Settings holds the type-specific `config:` block, decoded on demand
	// by Webhook or Bot.
	Settings yaml.Node `yaml:"config"`
}

// WebhookSettings configures a forwarding (custom bot webhook) provider.
type WebhookSettings struct {
	// URL is the custom bot webhook address.
	URL string `yaml:"url"`

	// URLEnv names an environment variable holding the URL; used when URL is empty.
	URLEnv string `yaml:"urlEnv"`
}

// ResolvedURL returns URL, or the value of URLEnv when URL is empty.
func (w WebhookSettings) ResolvedURL() string {
	if w.URL != "" || w.URLEnv == "" {
		return w.URL
	}
	return os.Getenv(w.URLEnv)
}

// BotSettings configures a Lark app bot provider.
type BotSettings struct {
	AppID        string `yaml:"appID"`
	AppSecret    string `yaml:"appSecret"`
	AppSecretEnv string `yaml:"appSecretEnv"`

	// Chats are the chat_ids every alert is sent to, in order.
	Chats []string `yaml:"chats"`

	// AlertManagerEndpoint is the Alertmanager base URL silences are created on.
	AlertManagerEndpoint string `yaml:"alertManagerEndpoint"`

	// ListChats logs the chats visible to the bot at startup (default true).
	ListChats bool `yaml:"listChats"`

	// VerifyChats warns about configured chats the bot cannot see (default true).
	VerifyChats bool `yaml:"verifyChats"`

	// Domain is the open-platform base URL (default https://open.feishu.cn).
	Domain string `yaml:"domain"`

	// UserCacheTTL is how long resolved user names are cached; 0 disables
	// the cache (default 1h).
	UserCacheTTL model.Duration `yaml:"userCacheTTL"`
}

// Secret returns AppSecret, or the value of AppSecretEnv when AppSecret is empty.
func (b BotSettings) Secret() string {
	if b.AppSecret != "" || b.AppSecretEnv == "" {
		return b.AppSecret
	}
	return os.Getenv(b.AppSecretEnv)
}

// Webhook decodes the settings block of a webhook provider.
func (p Provider) Webhook() (WebhookSettings, error) {
	var s WebhookSettings
	if err := p.decode(&s); err != nil {
		return s, err
	}
	return s, nil
}

// Bot decodes the settings block of a bot provider, applying defaults.
func (p Provider) Bot() (BotSettings, error) {
	s := BotSettings{
		ListChats:    true,
		VerifyChats:  true,
		UserCacheTTL: DefaultUserCacheTTL,
	}
	if err := p.decode(&s); err != nil {
		return s, err
	}
	return s, nil
}

func (p Provider) decode(v any) error {
	if p.Settings.Kind == 0 {
		return nil
	}
	if err := p.Settings.Decode(v); err != nil {
		return fmt.Errorf("provider %q: parse config: %w", p.Name, err)
	}
	return nil
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("config: PORT %q is not a number", p)
		}
		cfg.Server.Port = port
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        DefaultPort,
			HTTPTimeout: DefaultHTTPTimeout,
			UTCOffset:   DefaultUTCOffset,
		},
	}
}

// validate checks structural constraints on the parsed configuration.
// The provider type itself is checked when the registry is built.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port)
	}
	if cfg.Server.HTTPTimeout <= 0 {
		return fmt.Errorf("server.httpTimeout must be positive")
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}

	seen := make(map[string]string, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if p.Hash == "" {
			return fmt.Errorf("provider %q: hash is required", p.Name)
		}
		if other, dup := seen[p.Hash]; dup {
			return fmt.Errorf("provider %q: hash already used by %q", p.Name, other)
		}
		seen[p.Hash] = p.Name

		switch p.Type {
		case TypeWebhook, TypeForward:
			s, err := p.Webhook()
			if err != nil {
				return err
			}
			if err := validateURL(s.ResolvedURL()); err != nil {
				return fmt.Errorf("provider %q: config.url: %w", p.Name, err)
			}
		case TypeBot:
			s, err := p.Bot()
			if err != nil {
				return err
			}
			if s.AppID == "" {
				return fmt.Errorf("provider %q: config.appID is required", p.Name)
			}
			if s.Secret() == "" {
				return fmt.Errorf("provider %q: config.appSecret or appSecretEnv is required", p.Name)
			}
			if len(s.Chats) == 0 {
				return fmt.Errorf("provider %q: config.chats must list at least one chat_id", p.Name)
			}
			if err := validateURL(s.AlertManagerEndpoint); err != nil {
				return fmt.Errorf("provider %q: config.alertManagerEndpoint: %w", p.Name, err)
			}
			if s.Domain != "" {
				if err := validateURL(s.Domain); err != nil {
					return fmt.Errorf("provider %q: config.domain: %w", p.Name, err)
				}
			}
			if s.UserCacheTTL < 0 {
				return fmt.Errorf("provider %q: config.userCacheTTL must not be negative", p.Name)
			}
		}
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
