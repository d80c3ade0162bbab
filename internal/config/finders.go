package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFindersPath is where LoadFindersFile looks relative to the project root.
const DefaultFindersPath = ".kf/finders.yaml"

// FindersFile represents the structure of .kf/finders.yaml
type FindersFile struct {
	// Local kernelspec discovery
	Local LocalFile `yaml:"local"`

	// Jupyter servers to list kernels from
	Remotes []RemoteFile `yaml:"remotes"`

	// Extension-contributed kernel files
	Contributed []ContributedFile `yaml:"contributed"`

	// HistoryDB is the sqlite event history path
	HistoryDB string `yaml:"history_db"`
}

// LocalFile configures the local kernelspec finder in the config file.
type LocalFile struct {
	Enabled  *bool    `yaml:"enabled"` // nil = enabled
	Dirs     []string `yaml:"dirs"`
	Watch    bool     `yaml:"watch"`
	Debounce string   `yaml:"debounce"` // Duration string like "250ms"
}

// RemoteFile configures one Jupyter server in the config file.
type RemoteFile struct {
	BaseURL      string  `yaml:"base_url"`
	Token        string  `yaml:"token"`
	TokenEnv     string  `yaml:"token_env"`     // read the token from this variable instead
	PollInterval string  `yaml:"poll_interval"` // Duration string like "30s"
	RateLimit    float64 `yaml:"rate_limit"`    // refreshes per second
	Burst        int     `yaml:"burst"`
}

// ContributedFile configures one contributed kernels file.
type ContributedFile struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

// FindersConfig is the resolved finder setup.
type FindersConfig struct {
	LocalEnabled  bool
	LocalDirs     []string
	LocalWatch    bool
	LocalDebounce time.Duration

	Remotes     []RemoteServer
	Contributed []ContributedFile

	HistoryDB string
}

// RemoteServer is a resolved Jupyter server entry.
type RemoteServer struct {
	BaseURL      string
	Token        string
	PollInterval time.Duration
	RateLimit    float64
	Burst        int
}

// DefaultFindersConfig returns the setup used when no config file exists:
// local kernelspecs from the standard Jupyter locations, no servers.
func DefaultFindersConfig() *FindersConfig {
	return &FindersConfig{
		LocalEnabled:  true,
		LocalDirs:     DefaultKernelSpecDirs(),
		LocalDebounce: 250 * time.Millisecond,
		HistoryDB:     filepath.Join(".kf", "history.db"),
	}
}

// DefaultKernelSpecDirs lists kernelspec directories in Jupyter's search
// order: JUPYTER_PATH entries, the user data dir, then system dirs.
func DefaultKernelSpecDirs() []string {
	var dirs []string
	if jp := os.Getenv("JUPYTER_PATH"); jp != "" {
		for _, p := range filepath.SplitList(jp) {
			if p != "" {
				dirs = append(dirs, filepath.Join(p, "kernels"))
			}
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share", "jupyter", "kernels"))
	}
	return append(dirs,
		"/usr/local/share/jupyter/kernels",
		"/usr/share/jupyter/kernels",
	)
}

// LoadFindersFile loads configuration from path. If path is empty,
// .kf/finders.yaml under projectRoot is used. A missing file yields the
// defaults.
func LoadFindersFile(projectRoot, path string) (*FindersConfig, error) {
	if path == "" {
		path = filepath.Join(projectRoot, DefaultFindersPath)
	}

	cfg := DefaultFindersConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: use defaults
	case err != nil:
		return nil, fmt.Errorf("reading finders file: %w", err)
	default:
		var file FindersFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing finders file: %w", err)
		}
		cfg, err = file.ToConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid finders file %s: %w", path, err)
		}
	}

	// Relative paths in the file are relative to the project root
	for i, c := range cfg.Contributed {
		if c.Path != "" && !filepath.IsAbs(c.Path) {
			cfg.Contributed[i].Path = filepath.Join(projectRoot, c.Path)
		}
	}
	if cfg.HistoryDB != "" && !filepath.IsAbs(cfg.HistoryDB) {
		cfg.HistoryDB = filepath.Join(projectRoot, cfg.HistoryDB)
	}
	return cfg, nil
}

// ToConfig converts a FindersFile to a FindersConfig.
func (f *FindersFile) ToConfig() (*FindersConfig, error) {
	cfg := DefaultFindersConfig()

	if f.Local.Enabled != nil {
		cfg.LocalEnabled = *f.Local.Enabled
	}
	if len(f.Local.Dirs) > 0 {
		cfg.LocalDirs = make([]string, len(f.Local.Dirs))
		for i, d := range f.Local.Dirs {
			cfg.LocalDirs[i] = expandHome(d)
		}
	}
	cfg.LocalWatch = f.Local.Watch
	if f.Local.Debounce != "" {
		d, err := time.ParseDuration(f.Local.Debounce)
		if err != nil {
			return nil, fmt.Errorf("invalid local debounce: %w", err)
		}
		cfg.LocalDebounce = d
	}

	seen := make(map[string]bool)
	for i, r := range f.Remotes {
		server, err := r.resolve()
		if err != nil {
			return nil, fmt.Errorf("remote %d: %w", i, err)
		}
		if seen[server.BaseURL] {
			return nil, fmt.Errorf("remote %s listed twice", server.BaseURL)
		}
		seen[server.BaseURL] = true
		cfg.Remotes = append(cfg.Remotes, server)
	}

	ids := make(map[string]bool)
	for i, c := range f.Contributed {
		if c.Path == "" {
			return nil, fmt.Errorf("contributed %d: path is required", i)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("contributed:%d", i)
		}
		if ids[c.ID] {
			return nil, fmt.Errorf("contributed id %q used twice", c.ID)
		}
		ids[c.ID] = true
		cfg.Contributed = append(cfg.Contributed, c)
	}

	if f.HistoryDB != "" {
		cfg.HistoryDB = expandHome(f.HistoryDB)
	}
	return cfg, nil
}

func (r RemoteFile) resolve() (RemoteServer, error) {
	server := RemoteServer{
		BaseURL:   strings.TrimRight(r.BaseURL, "/"),
		Token:     r.Token,
		RateLimit: r.RateLimit,
		Burst:     r.Burst,
	}
	if server.BaseURL == "" {
		return server, fmt.Errorf("base_url is required")
	}
	if r.TokenEnv != "" {
		server.Token = os.Getenv(r.TokenEnv)
	}
	if r.PollInterval != "" {
		d, err := time.ParseDuration(r.PollInterval)
		if err != nil {
			return server, fmt.Errorf("invalid poll_interval: %w", err)
		}
		if d < 0 {
			return server, fmt.Errorf("poll_interval cannot be negative (got %v)", d)
		}
		server.PollInterval = d
	}
	if r.RateLimit < 0 {
		return server, fmt.Errorf("rate_limit cannot be negative (got %v)", r.RateLimit)
	}
	return server, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
