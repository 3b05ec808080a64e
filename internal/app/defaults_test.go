package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name string
		env  map[string]string
		want Defaults
	}{
		{
			name: "photons variables win",
			env: map[string]string{
				"PHOTONS_CONFIG_PATH": "/custom/config.toml",
				"PHOTONS_HOME":        "/custom/photons",
				"XDG_CONFIG_HOME":     "/xdg/config",
				"XDG_DATA_HOME":       "/xdg/data",
			},
			want: Defaults{
				ConfigPath: "/custom/config.toml",
				BaseDir:    "/custom/photons",
				LogDir:     "/custom/photons/log",
			},
		},
		{
			name: "xdg directories",
			env: map[string]string{
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			want: Defaults{
				ConfigPath: "/xdg/config/photons.toml",
				BaseDir:    "/xdg/data/photons",
				LogDir:     "/xdg/data/photons/log",
			},
		},
		{
			name: "relative xdg values are ignored",
			env: map[string]string{
				"XDG_CONFIG_HOME": "relative",
			},
			want: Defaults{
				ConfigPath: filepath.Join(home, ".config", "photons.toml"),
				BaseDir:    filepath.Join(home, ".local", "share", "photons"),
				LogDir:     filepath.Join(home, ".local", "share", "photons", "log"),
			},
		},
		{
			name: "home fallback",
			want: Defaults{
				ConfigPath: filepath.Join(home, ".config", "photons.toml"),
				BaseDir:    filepath.Join(home, ".local", "share", "photons"),
				LogDir:     filepath.Join(home, ".local", "share", "photons", "log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"PHOTONS_CONFIG_PATH", "PHOTONS_HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(key, tt.env[key])
			}

			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
