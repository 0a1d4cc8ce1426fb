package relayctl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"RelayMessenger/internal/assistant"
)

const (
	DefaultServerURL = "http://localhost:5000"
	configName       = ".relayctl"
	tokenFileName    = ".relayctl_token"
)

type Config struct {
	ServerURL    string `mapstructure:"server_url"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model"`
	TokenFile    string `mapstructure:"token_file"`
}

// GlobalFlags registers the flags shared by every subcommand.
func GlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default $HOME/.relayctl.yaml)")
	fs.String("server", "", "relay server url")
	fs.String("model", "", "gemini model name")
	fs.String("token-file", "", "where the session token is kept")
	fs.BoolP("verbose", "v", false, "debug logging")
}

// LoadConfig layers defaults, the yaml config file, RELAY_* environment
// variables and finally explicit flags.
func LoadConfig(fs *pflag.FlagSet, home string) (Config, error) {
	v := viper.New()
	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("model", assistant.DefaultModel)
	v.SetDefault("token_file", filepath.Join(home, tokenFileName))

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	_ = v.BindEnv("gemini_api_key")

	for key, flag := range map[string]string{
		"server_url": "server",
		"model":      "model",
		"token_file": "token-file",
	} {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}

	explicit, _ := fs.GetString("config")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ServerURL == "" {
		return Config{}, errors.New("server_url must not be empty")
	}
	return cfg, nil
}

// LoadToken returns the saved session token, or "" when none is stored.
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(trimNewline(b)), nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func removeToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
