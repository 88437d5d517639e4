package main

import (
	"embed"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"github.com/doppelfm/doppel/internal/app"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	// Set desktop-specific defaults before loading config
	setDesktopDefaults()

	components, err := app.Build()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	desktopApp := NewApp(components)

	err = wails.Run(&options.App{
		Title:     "Doppel",
		Width:     1200,
		Height:    800,
		MinWidth:  800,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  desktopApp.startup,
		OnShutdown: desktopApp.shutdown,
		Bind: []interface{}{
			desktopApp,
		},
		Mac: &mac.Options{
			TitleBar: &mac.TitleBar{
				TitlebarAppearsTransparent: false,
			},
			About: &mac.AboutInfo{
				Title:   "Doppel",
				Message: "Duplicate File Finder",
			},
		},
		Windows: &windows.Options{
			WebviewIsTransparent: false,
			WindowIsTranslucent:  false,
		},
	})

	if err != nil {
		log.Fatalf("Wails error: %v", err)
	}
}

// setDesktopDefaults sets environment variables for desktop-appropriate
// defaults if they're not already set.
func setDesktopDefaults() {
	if os.Getenv("DOPPEL_DB_PATH") == "" {
		dataDir := getAppDataDir()
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Printf("Warning: Could not create data directory: %v", err)
		}
		os.Setenv("DOPPEL_DB_PATH", filepath.Join(dataDir, "doppel.db"))
	}
}

// getAppDataDir returns the platform-appropriate application data directory.
func getAppDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Doppel")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Doppel")
	default: // Linux and others
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "doppel")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "doppel")
	}
}
