package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Carbon   CarbonConfig   `mapstructure:"carbon"`
	App      AppConfig      `mapstructure:"app"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// CarbonConfig configures the Carbon CDP API client.
type CarbonConfig struct {
	Network        string `mapstructure:"network"`         // mainnet or testnet
	RequestTimeout int    `mapstructure:"request_timeout"` // seconds
}

type AppConfig struct {
	UserDataFile    string `mapstructure:"user_data_file"`    // subscriptions snapshot file
	CheckInterval   int    `mapstructure:"check_interval"`    // seconds between periodic cycles
	FirstCheckDelay int    `mapstructure:"first_check_delay"` // seconds before the first cycle
	DataDir         string `mapstructure:"data_dir"`          // history samples and rendered charts
}

// LoadConfig merges, in priority order: flags, env vars, .env, config.yaml, defaults.
func LoadConfig() (*Config, error) {
	// Best effort; a missing .env file is fine
	godotenv.Load(".env")

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // no error if the file is absent

	v.AutomaticEnv()

	setupEnvAliases(v)

	setupFlags(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setupEnvAliases(v *viper.Viper) {
	// Bare env names kept compatible with the original deployment
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("carbon.network", "CARBON_NETWORK")
	v.BindEnv("carbon.request_timeout", "CARBON_REQUEST_TIMEOUT")
	v.BindEnv("app.user_data_file", "USER_DATA_FILE")
	v.BindEnv("app.check_interval", "CHECK_INTERVAL")
	v.BindEnv("app.first_check_delay", "FIRST_CHECK_DELAY")
	v.BindEnv("app.data_dir", "DATA_DIR")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")

	v.SetDefault("carbon.network", "mainnet")
	v.SetDefault("carbon.request_timeout", 30)

	v.SetDefault("app.user_data_file", "demexhealthchatids.json")
	v.SetDefault("app.check_interval", 3600) // 1 hour
	v.SetDefault("app.first_check_delay", 5)
	v.SetDefault("app.data_dir", "data_out")
}

func setupFlags(v *viper.Viper) {
	if pflag.Lookup("telegram.bot_token") == nil {
		pflag.String("telegram.bot_token", "", "Telegram bot token (env: TELEGRAM_BOT_TOKEN)")
		pflag.String("carbon.network", "mainnet", "Network: mainnet or testnet (env: CARBON_NETWORK)")
		pflag.Int("carbon.request_timeout", 30, "Request timeout in seconds (env: CARBON_REQUEST_TIMEOUT)")
		pflag.String("app.user_data_file", "demexhealthchatids.json", "Subscriptions file (env: USER_DATA_FILE)")
		pflag.Int("app.check_interval", 3600, "Check interval in seconds (env: CHECK_INTERVAL)")
		pflag.Int("app.first_check_delay", 5, "Delay before first check in seconds (env: FIRST_CHECK_DELAY)")
		pflag.String("app.data_dir", "data_out", "Data directory for history and charts (env: DATA_DIR)")
	}

	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)
}

func validateConfig(cfg *Config) error {
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("no bot token provided: telegram.bot_token (TELEGRAM_BOT_TOKEN) is required")
	}
	if cfg.App.CheckInterval <= 0 {
		return fmt.Errorf("app.check_interval must be positive, got %d", cfg.App.CheckInterval)
	}
	return nil
}
