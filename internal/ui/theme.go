package ui

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func (t Theme) palette() Palette {
	if t == ThemeLight {
		return lightPalette
	}
	return darkPalette
}

// Toggled returns the other theme.
func (t Theme) Toggled() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	}
	return ThemeDark, false
}

// ThemeStore persists the theme preference in a single small file.
type ThemeStore struct {
	Path string
}

// DefaultThemeStore keeps the preference under the user's config directory.
func DefaultThemeStore() (*ThemeStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate config dir: %w", err)
	}
	return &ThemeStore{Path: filepath.Join(dir, "p2pchat", "theme")}, nil
}

// Load returns the saved theme, or dark when nothing valid is saved.
func (s *ThemeStore) Load() Theme {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return ThemeDark
	}
	t, _ := ParseTheme(string(b))
	return t
}

func (s *ThemeStore) Save(t Theme) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("save theme: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(string(t)+"\n"), 0o644); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}
