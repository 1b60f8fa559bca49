package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type SessionsConfig struct {
	// TTL по пути входа. Раздельные значения — осознанная настройка:
	// длинная админская сессия удобна операторам, но у админа выше
	// "радиус поражения". Это tunable, а не закон.
	UserTTLHours  int `yaml:"user_ttl_hours"`
	AdminTTLHours int `yaml:"admin_ttl_hours"`
	OAuthTTLHours int `yaml:"oauth_ttl_hours"`

	CookieName     string `yaml:"cookie_name"`
	RoleCookieName string `yaml:"role_cookie_name"`
	CookieSecure   bool   `yaml:"cookie_secure"`
}

func (s SessionsConfig) UserTTL() time.Duration  { return time.Duration(s.UserTTLHours) * time.Hour }
func (s SessionsConfig) AdminTTL() time.Duration { return time.Duration(s.AdminTTLHours) * time.Hour }
func (s SessionsConfig) OAuthTTL() time.Duration { return time.Duration(s.OAuthTTLHours) * time.Hour }

type OAuthProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

type OAuthConfig struct {
	Google          OAuthProviderConfig `yaml:"google"`
	GitHub          OAuthProviderConfig `yaml:"github"`
	SuccessURL      string              `yaml:"success_url"`
	FailureURL      string              `yaml:"failure_url"`
	StateTTLMinutes int                 `yaml:"state_ttl_minutes"`
	TimeoutSeconds  int                 `yaml:"timeout_seconds"`
}

func (o OAuthConfig) StateTTL() time.Duration {
	return time.Duration(o.StateTTLMinutes) * time.Minute
}

func (o OAuthConfig) HTTPTimeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

type RateLimitConfig struct {
	Burst         int `yaml:"burst"`
	WindowSeconds int `yaml:"window_seconds"` // окно на пополнение одного токена
}

func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type SMSConfig struct {
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	SMS       SMSConfig       `yaml:"sms"`
}

func LoadConfig() *Config {
	return LoadConfigFrom("config/config.yaml")
}

func LoadConfigFrom(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		panic("Failed to open " + path + ": " + err.Error())
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		panic("Failed to parse " + path + ": " + err.Error())
	}

	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Sessions.UserTTLHours <= 0 {
		cfg.Sessions.UserTTLHours = 24
	}
	if cfg.Sessions.AdminTTLHours <= 0 {
		cfg.Sessions.AdminTTLHours = 7 * 24
	}
	if cfg.Sessions.OAuthTTLHours <= 0 {
		cfg.Sessions.OAuthTTLHours = cfg.Sessions.UserTTLHours
	}
	if cfg.Sessions.CookieName == "" {
		cfg.Sessions.CookieName = "mr_session"
	}
	if cfg.Sessions.RoleCookieName == "" {
		cfg.Sessions.RoleCookieName = "mr_role"
	}
	if cfg.OAuth.StateTTLMinutes <= 0 {
		cfg.OAuth.StateTTLMinutes = 10
	}
	if cfg.OAuth.TimeoutSeconds <= 0 {
		cfg.OAuth.TimeoutSeconds = 10
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 10
	}
}
