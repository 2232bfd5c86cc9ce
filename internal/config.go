package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/samber/lo"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	GRPCHealthPort int    `env:"GRPC_HEALTH_PORT,default=9090"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	MaxContentLength int    `env:"MAX_CONTENT_LENGTH,default=500"`
	CensoredWords    string `env:"CENSORED_WORDS"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`
	DetectLanguage   bool   `env:"DETECT_LANGUAGE,default=true"`

	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=500ms"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	LowCapacityThreshold int           `env:"LOW_CAPACITY_THRESHOLD,default=80"`
	DisplayHistorySize   int           `env:"DISPLAY_HISTORY_SIZE,default=50"`
	EnforceRoomAccess    bool          `env:"REALTIME_ENFORCE_ROOM_ACCESS,default=false"`
	CORSAllowedOrigins   string        `env:"CORS_ALLOWED_ORIGINS,default=*"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	BootstrapAdminName     string `env:"BOOTSTRAP_ADMIN_NAME,default=Administrator"`
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads the configuration from the environment and checks the values
// the tags cannot express.
func Load() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := CharacterRune(config.CharReplacement); err != nil {
		return Config{}, err
	}
	if config.MaxContentLength <= 0 {
		return Config{}, fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", config.MaxContentLength)
	}
	if config.EventBufferSize <= 0 {
		return Config{}, fmt.Errorf("EVENT_BUFFER_SIZE must be positive, got %d", config.EventBufferSize)
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) CensoredWordList() []string {
	return splitList(c.CensoredWords)
}

func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// HasBootstrapAdmin tells whether the first admin account can be created.
func (c Config) HasBootstrapAdmin() bool {
	return c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword != ""
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

func splitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Compact(items)
}
