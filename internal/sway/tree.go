package sway

import (
	"encoding/json"
	"fmt"

	"github.com/chess10kp/lswitch/internal/item"
	"github.com/chess10kp/lswitch/internal/platform"
)

// Node is the subset of a sway tree node the switcher reads.
type Node struct {
	ID               int64        `json:"id"`
	Name             string       `json:"name"`
	Type             string       `json:"type"`
	PID              int          `json:"pid"`
	AppID            string       `json:"app_id"`
	Visible          bool         `json:"visible"`
	Rect             Rect         `json:"rect"`
	WindowProperties *WindowProps `json:"window_properties"`
	Nodes            []Node       `json:"nodes"`
	FloatingNodes    []Node       `json:"floating_nodes"`
}

type WindowProps struct {
	Class    string `json:"class"`
	Instance string `json:"instance"`
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Geometry formats r the way grim -g expects.
func (r Rect) Geometry() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// WindowInfo is a client window found in the tree.
type WindowInfo struct {
	ConID     int64
	PID       int
	AppName   string
	Title     string
	Workspace string
	Visible   bool
	Rect      Rect
}

// Label is the string a window is matched by for previews.
func (w WindowInfo) Label() string {
	return item.WindowLabel(w.AppName, w.Title)
}

func parseTree(data []byte) (Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return Node{}, fmt.Errorf("failed to parse sway tree: %w", err)
	}
	return root, nil
}

// decodeNode converts any JSON-shaped value, such as a go-sway container,
// into a Node.
func decodeNode(v any) (Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Node{}, err
	}
	return parseTree(data)
}

// appName picks a display name for a client: the Wayland app_id, else the X11
// class, else the pid.
func (n Node) appName() string {
	if n.AppID != "" {
		return n.AppID
	}
	if n.WindowProperties != nil && n.WindowProperties.Class != "" {
		return n.WindowProperties.Class
	}
	return fmt.Sprintf("pid %d", n.PID)
}

func (n Node) isClient() bool {
	return (n.Type == "con" || n.Type == "floating_con") && n.PID > 0 && len(n.Nodes) == 0 && len(n.FloatingNodes) == 0
}

// extractWindows walks the tree in layout order collecting client windows.
func extractWindows(node Node, workspace string) []WindowInfo {
	var windows []WindowInfo

	if node.Type == "workspace" {
		workspace = node.Name
	}

	if node.isClient() {
		windows = append(windows, WindowInfo{
			ConID:     node.ID,
			PID:       node.PID,
			AppName:   node.appName(),
			Title:     node.Name,
			Workspace: workspace,
			Visible:   node.Visible,
			Rect:      node.Rect,
		})
	}

	for _, child := range node.Nodes {
		windows = append(windows, extractWindows(child, workspace)...)
	}
	for _, child := range node.FloatingNodes {
		windows = append(windows, extractWindows(child, workspace)...)
	}

	return windows
}

// processesOf groups windows by owner in order of first appearance, leaving
// out skip.
func processesOf(windows []WindowInfo, skip int) []platform.Process {
	seen := make(map[int]bool)
	var procs []platform.Process
	for _, w := range windows {
		if w.PID == skip || seen[w.PID] {
			continue
		}
		seen[w.PID] = true
		procs = append(procs, platform.Process{PID: w.PID, Name: w.AppName})
	}
	return procs
}
