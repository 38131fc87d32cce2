package utils

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/go-multierror"
)

type chrootMount struct {
	source string
	fstype string
	flags  uintptr
}

// Chroot holds the scoped API mounts of a target root. Prepare sets them up,
// Close tears them down in reverse order; Scope guarantees teardown around a
// callback even when it fails.
type Chroot struct {
	path          string
	defaultMounts []chrootMount
	activeMounts  []string
}

func NewChroot(path string) *Chroot {
	return &Chroot{
		path: path,
		defaultMounts: []chrootMount{
			{source: "/proc", fstype: "proc"},
			{source: "/sys", fstype: "sysfs"},
			{source: "/dev", flags: syscall.MS_BIND},
			{source: "/dev/pts", flags: syscall.MS_BIND},
		},
		activeMounts: []string{},
	}
}

func (c *Chroot) Path() string {
	return c.path
}

// Prepare mounts the API filesystems and copies the host resolv.conf so
// package installs inside the root can resolve names.
func (c *Chroot) Prepare() error {
	var err error

	if len(c.activeMounts) > 0 {
		return errors.New("there are already active mountpoints for this instance")
	}

	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	for _, mnt := range c.defaultMounts {
		mountPoint := filepath.Join(c.path, mnt.source)
		err = CreateIfNotExists(mountPoint)
		if err != nil {
			Log.Err(err).Str("what", mountPoint).Msg("Creating dir")
			return err
		}
		fstype := mnt.fstype
		if mnt.flags&syscall.MS_BIND != 0 {
			fstype = "bind"
		}
		err = syscall.Mount(mnt.source, mountPoint, mnt.fstype, mnt.flags, "")
		if err != nil {
			Log.Err(err).Str("where", mountPoint).Str("what", mnt.source).Str("type", fstype).Msg("Mounting chroot")
			return err
		}
		c.activeMounts = append(c.activeMounts, mountPoint)
	}

	if err = c.copyResolvConf(); err != nil {
		Log.Err(err).Msg("Copying resolv.conf into chroot")
		return err
	}

	return nil
}

func (c *Chroot) copyResolvConf() error {
	data, err := os.ReadFile("/etc/resolv.conf")
	if err != nil {
		return err
	}
	target := filepath.Join(c.path, "etc", "resolv.conf")
	if err := CreateIfNotExists(filepath.Dir(target)); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0644)
}

// Close unmounts all active mounts in reverse order. Calling it again after a
// full teardown is a no-op.
func (c *Chroot) Close() error {
	var failures error
	remaining := []string{}
	for len(c.activeMounts) > 0 {
		curr := c.activeMounts[len(c.activeMounts)-1]
		Log.Debug().Str("what", curr).Msg("Unmounting from chroot")
		c.activeMounts = c.activeMounts[:len(c.activeMounts)-1]
		if err := syscall.Unmount(curr, 0); err != nil {
			Log.Err(err).Str("what", curr).Msg("Error unmounting")
			failures = multierror.Append(failures, err)
			remaining = append(remaining, curr)
		}
	}
	c.activeMounts = remaining
	return failures
}

// Scope runs f between Prepare and Close. Teardown always runs; a teardown
// failure never masks the callback's error.
func (c *Chroot) Scope(f func() error) (err error) {
	if err = c.Prepare(); err != nil {
		return err
	}
	defer func() {
		tmpErr := c.Close()
		if err == nil {
			err = tmpErr
		} else if tmpErr != nil {
			Log.Err(tmpErr).Msg("Chroot teardown failed after an earlier error")
		}
	}()
	return f()
}

// RunCallback runs the given callback chrooted into the target root. The
// caller is expected to hold an active Prepare scope.
func (c *Chroot) RunCallback(callback func() error) (err error) {
	var currentPath string
	var oldRootF *os.File

	currentPath, err = os.Getwd()
	if err != nil {
		Log.Err(err).Msg("Failed to get current path")
		return err
	}
	defer func() {
		tmpErr := os.Chdir(currentPath)
		if err == nil && tmpErr != nil {
			err = tmpErr
		}
	}()

	oldRootF, err = os.Open("/")
	if err != nil {
		Log.Err(err).Msg("Can't open current root")
		return err
	}
	defer oldRootF.Close()

	err = syscall.Chdir(c.path)
	if err != nil {
		Log.Err(err).Str("path", c.path).Msg("Can't chdir")
		return err
	}

	err = syscall.Chroot(c.path)
	if err != nil {
		Log.Err(err).Str("path", c.path).Msg("Can't chroot")
		return err
	}

	defer func() {
		tmpErr := oldRootF.Chdir()
		if tmpErr != nil {
			Log.Err(tmpErr).Msg("Can't change to old root dir")
			if err == nil {
				err = tmpErr
			}
			return
		}
		tmpErr = syscall.Chroot(".")
		if tmpErr != nil {
			Log.Err(tmpErr).Msg("Can't chroot back to old root")
			if err == nil {
				err = tmpErr
			}
		}
	}()

	return callback()
}

// Run executes a shell command inside the chroot.
func (c *Chroot) Run(command string) ([]byte, error) {
	var out []byte
	var err error
	callback := func() error {
		out, err = RunCapture("/bin/sh", "-c", command)
		return err
	}
	runErr := c.RunCallback(callback)
	if runErr != nil {
		Log.Err(runErr).Str("cmd", command).Msg("Cant run command on chroot")
	}
	return out, runErr
}
