package config

import (
	"context"
	"os"

	"github.com/sethvargo/go-envconfig"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/aquasecurity/nvd-release-builder/feed"
	"github.com/aquasecurity/nvd-release-builder/utils"
)

const DefaultRepositoryURL = "https://github.com/fkie-cad/nvd-json-data-feeds.git"

type Config struct {
	// CacheDir holds the bare clone of the repository and its checkout.
	CacheDir      string `yaml:"cache_dir" env:"NVD_RELEASE_CACHE_DIR, overwrite"`
	RepositoryURL string `yaml:"repository_url" env:"NVD_RELEASE_REPOSITORY_URL, overwrite"`
	XZPreset      int    `yaml:"xz_preset" env:"NVD_RELEASE_XZ_PRESET, overwrite"`
}

func Default() Config {
	return Config{
		CacheDir:      utils.CacheDir(),
		RepositoryURL: DefaultRepositoryURL,
		XZPreset:      feed.DefaultPreset,
	}
}

// Load applies the YAML file at path, if any, and then the environment on top of the defaults.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, xerrors.Errorf("unable to read %s: %w", path, err)
		}
		if err = yaml.UnmarshalStrict(b, &cfg); err != nil {
			return Config{}, xerrors.Errorf("unable to parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, xerrors.Errorf("unable to process the environment: %w", err)
	}
	return cfg, nil
}

// Validate is called once flags have been applied, before any work starts.
func (c Config) Validate() error {
	if err := feed.CheckPreset(c.XZPreset); err != nil {
		return xerrors.Errorf("xz preset: %w", err)
	}
	if c.CacheDir == "" {
		return xerrors.New("cache dir must be set")
	}
	return nil
}
