package sway

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"

	"github.com/chess10kp/lswitch/internal/platform"
)

// CapturableWindows lists windows currently on screen. Only those can be
// captured, since grim reads the composited output.
func (b *Backend) CapturableWindows(ctx context.Context) ([]platform.CaptureTarget, error) {
	windows, err := b.windows(ctx)
	if err != nil {
		return nil, err
	}

	var targets []platform.CaptureTarget
	for _, w := range windows {
		if !w.Visible || w.Rect.Width <= 0 || w.Rect.Height <= 0 {
			continue
		}
		targets = append(targets, platform.CaptureTarget{Label: w.Label(), Source: w.Rect})
	}
	return targets, nil
}

// CaptureFrame grabs one frame of the region src covers.
func (b *Backend) CaptureFrame(ctx context.Context, src platform.CaptureSource) (image.Image, error) {
	rect, ok := src.(Rect)
	if !ok {
		return nil, fmt.Errorf("unexpected capture source %T", src)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.grim, "-t", "png", "-l", "0", "-g", rect.Geometry(), "-")
	cmd.Env = cleanEnv()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s -g %q: %w: %s", b.grim, rect.Geometry(), err, bytes.TrimSpace(stderr.Bytes()))
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capture: %w", err)
	}
	return img, nil
}
