package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// TokenEnv is the environment variable holding the API token
const TokenEnv = "VISTOPIA_API_TOKEN"

// Config is the resolved runtime configuration
type Config struct {
	Token      string
	APIBaseURL string
	WebBaseURL string
	ArticleURL string
	Timeout    time.Duration
	RateLimit  float64
	OutputDir  string
	LogLevel   string
	Language   string
}

func SetDefaults() {
	viper.SetDefault("api.base_url", "https://api.vistopia.com.cn/api/v1/")
	viper.SetDefault("api.web_base_url", "https://www.vistopia.com.cn/api/v1/")
	viper.SetDefault("api.article_url", "https://www.vistopia.com.cn/article/")
	viper.SetDefault("api.timeout", 30*time.Second)
	viper.SetDefault("api.rate_limit", 0.0) // unlimited
	viper.SetDefault("output.dir", "downloads")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("transcript.language", "zh-hans")
}

// Init loads .env files, binds the environment and reads the config file.
// cfgFile overrides the search path when set. A missing config file is
// not an error.
func Init(cfgFile string) error {
	// Do not override environment provided by the shell.
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	SetDefaults()

	viper.SetEnvPrefix("VISTOPIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.BindEnv("token", TokenEnv); err != nil {
		return fmt.Errorf("bind token env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("vistopia")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$HOME/.vistopia")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load snapshots the current viper state
func Load() Config {
	return Config{
		Token:      viper.GetString("token"),
		APIBaseURL: viper.GetString("api.base_url"),
		WebBaseURL: viper.GetString("api.web_base_url"),
		ArticleURL: viper.GetString("api.article_url"),
		Timeout:    viper.GetDuration("api.timeout"),
		RateLimit:  viper.GetFloat64("api.rate_limit"),
		OutputDir:  viper.GetString("output.dir"),
		LogLevel:   viper.GetString("log.level"),
		Language:   viper.GetString("transcript.language"),
	}
}
