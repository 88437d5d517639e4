package main

import (
	"context"
	"errors"
	"os/exec"
	"runtime"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/doppelfm/doppel/internal/app"
	"github.com/doppelfm/doppel/internal/dupes"
	"github.com/doppelfm/doppel/internal/types"
)

// progressEvent is the Wails event carrying search progress to the UI.
const progressEvent = "duplicates:progress"

// App holds the Wails application context and exposes the methods the
// frontend calls.
type App struct {
	ctx        context.Context
	components *app.Components
	progressCh chan *types.SearchProgress
}

// NewApp creates a new App instance.
func NewApp(components *app.Components) *App {
	return &App{components: components}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	// Forward progress to the frontend for the lifetime of the app.
	a.progressCh = a.components.Search.Subscribe()
	go func() {
		for progress := range a.progressCh {
			wailsruntime.EventsEmit(a.ctx, progressEvent, progress)
		}
	}()
}

// shutdown is called when the app exits.
func (a *App) shutdown(ctx context.Context) {
	a.components.Search.Cancel()
	a.components.Search.Unsubscribe(a.progressCh)
	a.components.Close()
}

// FindDuplicates searches the given roots and returns groups of files
// matching all enabled criteria. A cancelled search returns an empty
// result, not an error; the UI sees the cancelled status on the
// progress event stream.
func (a *App) FindDuplicates(roots []string, options types.SearchOptions) ([]types.DuplicateGroup, error) {
	groups, err := a.components.Search.FindDuplicates(a.ctx, dupes.Request{
		Roots: roots,
		Options: dupes.Options{
			ByName:    options.ByName,
			BySize:    options.BySize,
			ByContent: options.ByContent,
		},
	}, nil)
	if errors.Is(err, dupes.ErrCancelled) {
		return []types.DuplicateGroup{}, nil
	}
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// CancelFindDuplicates stops the active search, if any.
func (a *App) CancelFindDuplicates() {
	a.components.Search.Cancel()
}

// SearchActive reports whether a duplicate search is running.
func (a *App) SearchActive() bool {
	return a.components.Search.Active()
}

// SelectDirectory opens a native directory picker and returns the chosen
// path, or empty string when the user cancels.
func (a *App) SelectDirectory(title string) (string, error) {
	return wailsruntime.OpenDirectoryDialog(a.ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
}

// OpenInFileManager reveals the given path in the system file manager.
func (a *App) OpenInFileManager(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", "-R", path) // -R reveals in Finder
	case "windows":
		cmd = exec.Command("explorer", "/select,", path)
	default: // Linux
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}
