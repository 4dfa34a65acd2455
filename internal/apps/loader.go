// Package apps loads installed applications from XDG desktop entries and
// launches them.
package apps

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chess10kp/lswitch/internal/config"
	"github.com/chess10kp/lswitch/internal/platform"
)

const (
	cacheVersion = "2"
	parseLimit   = 10
)

// App is one parsed desktop entry.
type App struct {
	Name        string `json:"name"`
	Exec        string `json:"exec"`
	Icon        string `json:"icon"`
	File        string `json:"file"`
	Keywords    string `json:"keywords"`
	Description string `json:"description"`
	NoDisplay   bool   `json:"no_display"`
}

type cacheFile struct {
	Apps      []App  `json:"apps"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Loader implements platform.AppProvider over .desktop files.
type Loader struct {
	dirs      []string
	cacheFile string
	maxAge    time.Duration

	mu         sync.Mutex
	apps       []App
	cacheValid bool
	rescan     bool

	loads singleflight.Group

	// start launches a prepared command; replaced in tests.
	start func(*exec.Cmd) error
}

// NewLoader builds a loader from the apps section of cfg.
func NewLoader(cfg *config.Config) *Loader {
	return NewLoaderWithDirs(SearchDirs(cfg), cfg.AppsCachePath(), time.Duration(cfg.Apps.CacheMaxAgeHours)*time.Hour)
}

// NewLoaderWithDirs scans dirs in order. An empty cachePath disables the file
// cache.
func NewLoaderWithDirs(dirs []string, cachePath string, maxAge time.Duration) *Loader {
	return &Loader{
		dirs:      dirs,
		cacheFile: cachePath,
		maxAge:    maxAge,
		start:     startDetached,
	}
}

// SearchDirs lists the application directories cfg asks to scan, user dir
// first so user entries shadow system ones.
func SearchDirs(cfg *config.Config) []string {
	var dirs []string
	if cfg.Apps.ScanUserDir {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(os.Getenv("HOME"), ".local", "share")
		}
		dirs = append(dirs, filepath.Join(dataHome, "applications"))
	}
	if cfg.Apps.ScanSystemDirs {
		dirs = append(dirs, "/usr/share/applications", "/usr/local/share/applications")
	}
	return append(dirs, cfg.Apps.ExtraDirs...)
}

// InstalledApplications returns the visible applications, from the cache file
// when it is fresh. Concurrent callers share one load.
func (l *Loader) InstalledApplications(ctx context.Context) ([]platform.AppEntry, error) {
	v, err, _ := l.loads.Do("apps", func() (any, error) {
		return l.LoadApps(ctx, false)
	})
	if err != nil {
		return nil, err
	}

	list := v.([]App)
	entries := make([]platform.AppEntry, 0, len(list))
	for _, app := range list {
		entries = append(entries, platform.AppEntry{Name: app.Name, Path: app.File, Icon: app.Icon})
	}
	return entries, nil
}

// LoadApps loads applications from the cache or by scanning the search dirs.
func (l *Loader) LoadApps(ctx context.Context, forceReload bool) ([]App, error) {
	loadStart := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	forceReload = forceReload || l.rescan
	if !forceReload && l.cacheValid {
		return l.copyApps(), nil
	}
	if !forceReload && l.loadFromCache() {
		l.cacheValid = true
		log.Printf("[APPS] Loaded %d applications from cache in %v", len(l.apps), time.Since(loadStart))
		return l.copyApps(), nil
	}

	if err := l.loadFromSystem(ctx); err != nil {
		return nil, fmt.Errorf("failed to load apps from system: %w", err)
	}

	if err := l.saveToCache(); err != nil {
		log.Printf("[APPS] Warning: failed to save cache: %v", err)
	}

	log.Printf("[APPS] Loaded %d applications from system in %v", len(l.apps), time.Since(loadStart))
	return l.copyApps(), nil
}

func (l *Loader) copyApps() []App {
	apps := make([]App, len(l.apps))
	copy(apps, l.apps)
	return apps
}

// InvalidateCache forces the next load to rescan the search dirs, bypassing
// the cache file.
func (l *Loader) InvalidateCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cacheValid = false
	l.rescan = true
}

func (l *Loader) loadFromCache() bool {
	if l.cacheFile == "" {
		return false
	}

	data, err := os.ReadFile(l.cacheFile)
	if err != nil {
		return false
	}

	var cache cacheFile
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Printf("[APPS] Cache miss: failed to unmarshal %s: %v", l.cacheFile, err)
		return false
	}
	if cache.Version != cacheVersion {
		return false
	}

	cacheTime, err := time.Parse(time.RFC3339, cache.Timestamp)
	if err != nil {
		return false
	}
	if age := time.Since(cacheTime); age >= l.maxAge {
		log.Printf("[APPS] Cache miss: cache expired (age: %v, max: %v)", age, l.maxAge)
		return false
	}

	l.apps = cache.Apps
	return true
}

func (l *Loader) saveToCache() error {
	if l.cacheFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(l.cacheFile), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cacheFile{
		Apps:      l.apps,
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   cacheVersion,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tempFile := l.cacheFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tempFile, l.cacheFile); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}
	return nil
}

// desktopFiles collects .desktop files by desktop-file id. An id found in an
// earlier dir shadows the same id in later ones.
func (l *Loader) desktopFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, dir := range l.dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".desktop") {
				return nil
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				rel = filepath.Base(path)
			}
			id := strings.ReplaceAll(rel, string(filepath.Separator), "-")
			if seen[id] {
				return nil
			}
			seen[id] = true
			files = append(files, path)
			return nil
		})
	}
	return files
}

func (l *Loader) loadFromSystem(ctx context.Context) error {
	files := l.desktopFiles()
	parsed := make([]App, len(files))
	ok := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parseLimit)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			app, err := parseDesktopFile(path)
			if err != nil || app.NoDisplay {
				return nil
			}
			parsed[i], ok[i] = app, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	apps := make([]App, 0, len(files))
	for i, app := range parsed {
		if ok[i] {
			apps = append(apps, app)
		}
	}
	sort.SliceStable(apps, func(i, j int) bool {
		return strings.ToLower(apps[i].Name) < strings.ToLower(apps[j].Name)
	})

	l.apps = apps
	l.cacheValid = true
	l.rescan = false
	return nil
}

// parseDesktopFile reads the [Desktop Entry] group of a .desktop file.
// Entries that are not applications, or are hidden, come back with NoDisplay.
func parseDesktopFile(path string) (App, error) {
	file, err := os.Open(path)
	if err != nil {
		return App{}, err
	}
	defer file.Close()

	app := App{File: path}
	inEntry := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inEntry = line == "[Desktop Entry]"
			continue
		}
		if !inEntry {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Name":
			app.Name = value
		case "Exec":
			app.Exec = value
		case "Icon":
			app.Icon = value
		case "Type":
			if value != "Application" {
				app.NoDisplay = true
			}
		case "NoDisplay", "Hidden":
			if strings.EqualFold(value, "true") {
				app.NoDisplay = true
			}
		case "Keywords":
			app.Keywords = value
		case "Comment":
			app.Description = value
		}
	}
	if err := scanner.Err(); err != nil {
		return App{}, err
	}

	if app.Name == "" || app.Exec == "" {
		return App{}, fmt.Errorf("invalid desktop file %s: missing Name or Exec", path)
	}
	return app, nil
}

// OpenApplication launches the desktop entry at path detached from the
// switcher's session.
func (l *Loader) OpenApplication(path string) error {
	app, err := parseDesktopFile(path)
	if err != nil {
		return err
	}
	args, err := execArgs(app.Exec)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := l.start(cmd); err != nil {
		return fmt.Errorf("failed to launch %s: %w", app.Name, err)
	}
	log.Printf("[APPS] Launched %s (%s)", app.Name, strings.Join(args, " "))
	return nil
}

// startDetached starts cmd and reaps it in the background so finished apps
// do not linger as zombies of a long-running switcher.
func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("[APPS] %s exited: %v", cmd.Path, err)
		}
	}()
	return nil
}

// execArgs splits an Exec value into argv, honoring double quotes and
// dropping field codes such as %u and %F.
func execArgs(value string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuote, escaped, started := false, false, false

	flush := func() {
		if started {
			args = append(args, cur.String())
		}
		cur.Reset()
		started = false
	}

	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case r == '%' && i+1 < len(runes):
			i++
			if runes[i] == '%' {
				cur.WriteRune('%')
				started = true
			}
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in Exec %q", value)
	}
	flush()

	if len(args) == 0 {
		return nil, fmt.Errorf("empty Exec")
	}
	return args, nil
}
