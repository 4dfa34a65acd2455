package ui

import (
	"fmt"
	"log"
	"os"

	"github.com/gotk3/gotk3/gdk"
	"github.com/gotk3/gotk3/gtk"

	"github.com/chess10kp/lswitch/internal/config"
)

const stylesTemplate = `
* {
    font-family: "%[5]s", monospace;
    font-size: %[6]dpx;
}

#switcher-window {
    background-color: %[1]s;
    color: %[2]s;
    border-radius: %[7]dpx;
    border: 1px solid %[3]s;
}

#switcher-entry {
    background-color: %[1]s;
    color: %[2]s;
    padding: 12px;
    border: none;
    border-bottom: 1px solid %[3]s;
}

#result-list {
    background-color: transparent;
}

#result-list row {
    padding: 8px;
}

#result-list row:selected {
    background-color: %[4]s;
}

label {
    color: %[2]s;
}

.subtitle {
    opacity: 0.6;
}

#preview-pane {
    padding: 8px;
    border-left: 1px solid %[3]s;
}

#preview-status {
    opacity: 0.6;
}
`

// buildStyles renders the overlay stylesheet from the styling section.
func buildStyles(s config.StylingConfig) string {
	return fmt.Sprintf(stylesTemplate,
		s.BackgroundColor,
		s.ForegroundColor,
		s.BorderColor,
		s.SelectedColor,
		s.FontFamily,
		s.FontSize,
		s.BorderRadius,
	)
}

func SetupStyles(s config.StylingConfig) {
	screen, err := gdk.ScreenGetDefault()
	if err != nil || screen == nil {
		log.Printf("[UI] Warning: failed to get default screen: %v", err)
		return
	}

	provider, err := gtk.CssProviderNew()
	if err != nil {
		log.Printf("[UI] Warning: failed to create css provider: %v", err)
		return
	}
	if err := provider.LoadFromData(buildStyles(s)); err != nil {
		log.Printf("[UI] Warning: failed to load styles: %v", err)
		return
	}
	gtk.AddProviderForScreen(screen, provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)
}

// LoadCustomCSS layers a user stylesheet over the built-in one, if present.
func LoadCustomCSS(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	screen, err := gdk.ScreenGetDefault()
	if err != nil || screen == nil {
		return
	}

	provider, err := gtk.CssProviderNew()
	if err != nil {
		return
	}
	if err := provider.LoadFromData(string(data)); err != nil {
		log.Printf("[UI] Ignoring %s: %v", path, err)
		return
	}
	gtk.AddProviderForScreen(screen, provider, gtk.STYLE_PROVIDER_PRIORITY_USER)
}
