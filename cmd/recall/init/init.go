// Package initcmder provides the init command for initializing a local
// .recall directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/pkg/config"
)

const (
	dirName    = ".recall"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .recall/ directory in the current working directory.

Creates a local .recall/ directory that takes precedence over the default
~/.recall/ directory for storage, configuration and the vector index, and
writes a config.toml with default values.

Use --preset to start from a named provider preset or fetch a shared
config.toml from a URL. Re-running with --preset overwrites the existing
config.toml; running without it leaves an existing config untouched.

Examples:
  recall init
  recall init --preset ollama
  recall init --preset https://example.com/team-recall.toml`

const initShortDesc string = "Initialize a local .recall/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Provider preset name or config.toml URL")

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, statErr := os.Stat(dir)
	exists := statErr == nil && info.IsDir()

	if !exists {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .recall directory: %w", err)
		}
	}

	cfgPath := filepath.Join(dir, configFile)
	_, cfgErr := os.Stat(cfgPath)
	cfgExists := cfgErr == nil

	switch {
	case preset != "":
		cfg, err := presetConfig(preset)
		if err != nil {
			return err
		}
		if err := writeConfig(cfgPath, cfg); err != nil {
			return err
		}
		fmt.Printf("Initialized .recall directory: %s (preset %s)\n", dir, preset)

	case cfgExists:
		fmt.Printf("Already initialized: %s\n", dir)

	default:
		if err := writeConfig(cfgPath, config.NewDefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Initialized .recall directory: %s\n", dir)
	}

	return nil
}

// presetConfig resolves a preset name or URL to a Config.
func presetConfig(preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchRemoteConfig(preset)
	}

	switch preset {
	case "ollama":
		return config.NewDefaultConfig(), nil
	default:
		return nil, fmt.Errorf("unknown preset %q (known presets: ollama, or a config.toml URL)", preset)
	}
}

// fetchRemoteConfig downloads and parses a config.toml from a URL.
func fetchRemoteConfig(url string) (*config.Config, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}

func writeConfig(path string, cfg *config.Config) error {
	cfger, err := config.NewConfiger(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("preparing config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
