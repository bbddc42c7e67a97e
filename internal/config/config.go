package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server" env-required:"true"`
	Redis      Redis      `yaml:"redis" env-required:"true"`
	WhatsApp   WhatsApp   `yaml:"whatsapp" env-required:"true"`
	Downloads  Downloads  `yaml:"downloads"`
	Cleanup    Cleanup    `yaml:"cleanup"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

type HTTPServer struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:"0.0.0.0:8080"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type WhatsApp struct {
	Token         string `yaml:"token" env:"WHATSAPP_TOKEN" env-required:"true"`
	PhoneNumberID string `yaml:"phone_number_id" env:"PHONE_NUMBER_ID" env-required:"true"`
	VerifyToken   string `yaml:"verify_token" env:"VERIFY_TOKEN" env-required:"true"`
	// AppSecret enables X-Hub-Signature-256 verification on webhook posts.
	// Empty disables the check.
	AppSecret string `yaml:"app_secret" env:"WHATSAPP_APP_SECRET" env-default:""`
	// GraphBaseURL is overridable for tests.
	GraphBaseURL string `yaml:"graph_base_url" env:"GRAPH_BASE_URL" env-default:"https://graph.facebook.com/v19.0"`
	JWTSecret    string `yaml:"admin_jwt_secret" env:"ADMIN_JWT_SECRET" env-default:""`
}

// QualityTier maps one quality label to its size ceiling. Tiers are listed
// best-first in config; ceilings must be non-increasing down the list.
type QualityTier struct {
	Label string `yaml:"label"`
	MaxMB int64  `yaml:"max_mb"`
}

type Downloads struct {
	TempDir        string        `yaml:"temp_dir" env:"DOWNLOADS_TEMP_DIR" env-default:"temp"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"DOWNLOAD_ATTEMPT_TIMEOUT" env-default:"5m"`
	// HardCeilingMB is the host platform's media transfer limit.
	HardCeilingMB    int64         `yaml:"hard_ceiling_mb" env:"DOWNLOAD_HARD_CEILING_MB" env-default:"95"`
	AudioCeilingMB   int64         `yaml:"audio_ceiling_mb" env-default:"50"`
	ImageCeilingMB   int64         `yaml:"image_ceiling_mb" env-default:"50"`
	QualityTiers     []QualityTier `yaml:"quality_tiers"`
	EnableFallback   bool          `yaml:"enable_fallback" env:"DOWNLOAD_ENABLE_FALLBACK" env-default:"true"`
	MaxConcurrent    int64         `yaml:"max_concurrent" env:"DOWNLOAD_MAX_CONCURRENT" env-default:"4"`
	YouTubeCookies   string        `yaml:"youtube_cookies" env:"YOUTUBE_COOKIES_FILE" env-default:"ytcookies.txt"`
	InstagramCookies string        `yaml:"instagram_cookies" env:"INSTAGRAM_COOKIES_FILE" env-default:"cookies.txt"`
	AudioBitrate     string        `yaml:"audio_bitrate" env-default:"320"`
}

type Cleanup struct {
	Interval time.Duration `yaml:"interval" env:"CLEANUP_INTERVAL" env-default:"15m"`
	MaxAge   time.Duration `yaml:"max_age" env:"CLEANUP_MAX_AGE" env-default:"15m"`
}

type RateLimits struct {
	DownloadsPerMinute int64 `yaml:"downloads_per_minute" env-default:"5"`
	QRPerMinute        int64 `yaml:"qr_per_minute" env-default:"10"`
}

// DefaultQualityTiers mirrors the size ladder the bot has always shipped
// with; used when the config file leaves quality_tiers empty.
func DefaultQualityTiers() []QualityTier {
	return []QualityTier{
		{Label: "1080p", MaxMB: 90},
		{Label: "720p", MaxMB: 70},
		{Label: "480p", MaxMB: 50},
		{Label: "360p", MaxMB: 30},
		{Label: "240p", MaxMB: 20},
		{Label: "144p", MaxMB: 10},
	}
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	if len(cfg.Downloads.QualityTiers) == 0 {
		cfg.Downloads.QualityTiers = DefaultQualityTiers()
	}

	return &cfg
}
