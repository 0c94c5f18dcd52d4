package persist

import (
	"encoding/json"
	"fmt"

	"github.com/brettbedarf/webvfs/filesystem"
)

// Well-known paths of the baseline layout
const (
	HomeDir       = "/home/user"
	WelcomePath   = "/home/user/welcome.txt"
	MotdPath      = "/etc/motd"
	AppConfigPath = "/etc/app-config.json"
	ThemePath     = "/etc/theme.css"
)

// AppConfig is the UI configuration document seeded at [AppConfigPath]
type AppConfig struct {
	Terminal struct {
		WelcomeMessage string `json:"welcomeMessage"`
		Prompt         string `json:"promptDefault"`
	} `json:"terminal"`
	Theme struct {
		StylePath string `json:"stylePath"`
	} `json:"theme"`
	Filesystem struct {
		RootPath string `json:"rootPath"`
		HomePath string `json:"homePath"`
	} `json:"filesystem"`
	Store struct {
		StateKey string `json:"fsStateKey"`
	} `json:"store"`
}

// DefaultAppConfig returns the seeded UI configuration
func DefaultAppConfig(prompt, stateKey string) AppConfig {
	var c AppConfig
	c.Terminal.WelcomeMessage = `webvfs - type "help" for available commands`
	c.Terminal.Prompt = prompt
	c.Theme.StylePath = ThemePath
	c.Filesystem.RootPath = filesystem.Root
	c.Filesystem.HomePath = HomeDir
	c.Store.StateKey = stateKey
	return c
}

const welcomeText = `Welcome!

This is an in-memory filesystem. Every change is saved as a snapshot,
so whatever you create here is still around after a restart.

Try:
  ls /etc
  cat /etc/motd
  echo hello > notes.txt
`

const motdText = "Have a nice session.\n"

const themeCSS = `:root {
  --text-primary: #00ff00;
  --text-secondary: #eeeeee;
  --bg-dark: #000000;
  --bg-darker: #222222;
  --border-light: #444444;
  --focus-accent: #00aa00;
}
`

// Seed creates the baseline layout on a fresh filesystem. Existing
// directories are kept; seeded files overwrite whatever is at their path.
func Seed(fs *filesystem.FileSystem, app AppConfig) error {
	for _, dir := range []string{"/home", HomeDir, "/etc", "/tmp"} {
		if err := fs.Mkdir(dir); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	appJSON, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("seed: encode app config: %w", err)
	}
	files := []struct {
		path string
		data []byte
	}{
		{WelcomePath, []byte(welcomeText)},
		{MotdPath, []byte(motdText)},
		{AppConfigPath, append(appJSON, '\n')},
		{ThemePath, []byte(themeCSS)},
	}
	for _, f := range files {
		if err := fs.WriteFile(f.path, f.data); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
