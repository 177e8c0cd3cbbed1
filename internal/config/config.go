package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Discord DiscordConfig `mapstructure:"discord"`
	Mail    MailConfig    `mapstructure:"mail"`
	DB      DBConfig      `mapstructure:"db"`
	Web     WebConfig     `mapstructure:"web"`
	Log     LogConfig     `mapstructure:"log"`
}

type DiscordConfig struct {
	Token   string `mapstructure:"token"`
	GuildID string `mapstructure:"guild_id"`
	// Name of the role toggled by verification, "Verified" unless overridden.
	VerifiedRole string `mapstructure:"verified_role"`
}

type MailConfig struct {
	APIKey   string `mapstructure:"api_key"`
	FromAddr string `mapstructure:"from_addr"`
	FromName string `mapstructure:"from_name"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
	// Optional legacy JSON countdown file; when set it is used instead of
	// the database-backed countdown store.
	CountdownFile string `mapstructure:"countdown_file"`
}

type WebConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetDefault("discord.verified_role", "Verified")
	v.SetDefault("db.path", "paddock.db")
	v.SetDefault("web.addr", ":8080")
	v.SetDefault("log.level", "info")

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("discord token is required (DISCORD_TOKEN)")
	}
	if cfg.Discord.GuildID == "" {
		return nil, fmt.Errorf("discord guild id is required (DISCORD_GUILD_ID)")
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// Preserve the env variable names the deployment already uses.
	v.BindEnv("discord.token", "DISCORD_TOKEN")
	v.BindEnv("discord.guild_id", "DISCORD_GUILD_ID")
	v.BindEnv("discord.verified_role", "DISCORD_VERIFIED_ROLE")

	v.BindEnv("mail.api_key", "MAIL_API_KEY")
	v.BindEnv("mail.from_addr", "MAIL_FROM_ADDR")
	v.BindEnv("mail.from_name", "MAIL_FROM_NAME")

	v.BindEnv("db.path", "DB_PATH")
	v.BindEnv("db.countdown_file", "COUNTDOWN_FILE")

	v.BindEnv("web.addr", "WEB_ADDR")

	v.BindEnv("log.development", "LOG_DEV")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")
}
