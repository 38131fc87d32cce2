package utils

import (
	"bytes"
	"fmt"
)

// LoopDevice is an exclusive handle on a loop device attached to a backing
// file. Detach releases it; releasing twice is a no-op.
type LoopDevice struct {
	device  string
	backing string
}

// AttachLoop associates path with a free loop device and returns the handle.
func AttachLoop(path string) (*LoopDevice, error) {
	out, err := RunCapture("losetup", "-f", "--show", "-P", path)
	if err != nil {
		return nil, fmt.Errorf("attaching %s to a loop device: %w", path, err)
	}
	device := string(bytes.TrimSpace(out))
	if device == "" {
		return nil, fmt.Errorf("losetup returned no device for %s", path)
	}
	Log.Debug().Str("device", device).Str("backing", path).Msg("Attached loop device")
	return &LoopDevice{device: device, backing: path}, nil
}

func (l *LoopDevice) Device() string {
	return l.device
}

// Detach releases the loop device.
func (l *LoopDevice) Detach() error {
	if l.device == "" {
		return nil
	}
	_, err := RunCapture("losetup", "-d", l.device)
	if err != nil {
		Log.Err(err).Str("device", l.device).Msg("Detaching loop device")
		return err
	}
	Log.Debug().Str("device", l.device).Msg("Detached loop device")
	l.device = ""
	return nil
}
