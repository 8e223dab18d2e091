package repo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the repository-local config file inside .vctrl/.
const ConfigFileName = "config.toml"

// GlobalConfigName is the per-user config file in the home directory.
const GlobalConfigName = ".vctrlconfig.toml"

// Identity defaults used when no other source names an author.
const (
	DefaultAuthorName  = "you"
	DefaultAuthorEmail = "notknown"
)

// Config stores repository settings: the commit identity, named remotes
// and the credentials accepted by `vctrl serve`.
type Config struct {
	User    UserConfig              `toml:"user,omitempty"`
	Remotes map[string]RemoteConfig `toml:"remote,omitempty"`
	Server  ServerConfig            `toml:"server,omitempty"`
}

// UserConfig is the [user] table.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// RemoteConfig is one [remote.<name>] table.
type RemoteConfig struct {
	URL string `toml:"url"`
}

// ServerConfig is the [server] table. Users maps a username to a bcrypt
// hash; Tokens lists accepted bearer tokens.
type ServerConfig struct {
	Addr   string            `toml:"addr,omitempty"`
	Tokens []string          `toml:"tokens,omitempty"`
	Users  map[string]string `toml:"users,omitempty"`
}

// Identity names a commit author.
type Identity struct {
	Name  string
	Email string
}

func (r *Repo) configPath() string {
	return filepath.Join(r.VctrlDir, ConfigFileName)
}

// ReadConfig reads .vctrl/config.toml. A missing file is an empty config.
func (r *Repo) ReadConfig() (*Config, error) {
	cfg, err := readConfigFile(r.configPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]RemoteConfig)
	}
	return cfg, nil
}

// WriteConfig atomically replaces .vctrl/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := writeFileAtomic(r.VctrlDir, ConfigFileName, buf.Bytes()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SetRemote stores or updates a named remote URL.
func (r *Repo) SetRemote(name, remoteURL string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("set remote: %w: remote name is required", ErrInvalidArgument)
	}
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return fmt.Errorf("set remote: %w: remote URL is required", ErrInvalidArgument)
	}

	unlock, err := r.lock()
	if err != nil {
		return fmt.Errorf("set remote: %w", err)
	}
	defer unlock()

	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	cfg.Remotes[name] = RemoteConfig{URL: remoteURL}
	return r.WriteConfig(cfg)
}

// RemoteURL returns the configured URL for the named remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("remote url: %w: remote name is required", ErrInvalidArgument)
	}
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	rc, ok := cfg.Remotes[name]
	if !ok || strings.TrimSpace(rc.URL) == "" {
		return "", fmt.Errorf("remote %q: %w", name, ErrRefNotFound)
	}
	return rc.URL, nil
}

// Identity returns the commit author. Each field is taken from the first
// source that sets it: VCTRL_AUTHOR_NAME / VCTRL_AUTHOR_EMAIL, the [user]
// table of .vctrl/config.toml, the [user] table of ~/.vctrlconfig.toml,
// then "you" / "notknown".
func (r *Repo) Identity() Identity {
	id := Identity{
		Name:  os.Getenv("VCTRL_AUTHOR_NAME"),
		Email: os.Getenv("VCTRL_AUTHOR_EMAIL"),
	}
	fill := func(u UserConfig) {
		if id.Name == "" {
			id.Name = strings.TrimSpace(u.Name)
		}
		if id.Email == "" {
			id.Email = strings.TrimSpace(u.Email)
		}
	}

	if cfg, err := r.ReadConfig(); err == nil {
		fill(cfg.User)
	}
	if home, err := os.UserHomeDir(); err == nil {
		if cfg, err := readConfigFile(filepath.Join(home, GlobalConfigName)); err == nil {
			fill(cfg.User)
		}
	}
	fill(UserConfig{Name: DefaultAuthorName, Email: DefaultAuthorEmail})
	return id
}
