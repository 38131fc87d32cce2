package bootloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
)

// KernelVersion returns the version of the installed kernel, taken from the
// first entry of usr/lib/modules.
func KernelVersion(chroot string) (string, error) {
	modules := filepath.Join(chroot, "usr", "lib", "modules")
	entries, err := os.ReadDir(modules)
	if err != nil || len(entries) == 0 {
		return "", fmt.Errorf("%w: no kernel modules under %s", constants.ErrResourceMissing, modules)
	}
	return entries[0].Name(), nil
}

// FindVmlinuz locates the kernel binary of the installed kernel.
func FindVmlinuz(chroot string) (string, error) {
	ver, err := KernelVersion(chroot)
	if err != nil {
		return "", err
	}
	vmlinuz := filepath.Join(chroot, "usr", "lib", "modules", ver, "vmlinuz")
	if _, err := os.Stat(vmlinuz); err != nil {
		return "", fmt.Errorf("%w: %s", constants.ErrResourceMissing, vmlinuz)
	}
	return vmlinuz, nil
}

// FindInitramfs locates the live initramfs under boot/, skipping rescue
// images.
func FindInitramfs(chroot string) (string, error) {
	boot := filepath.Join(chroot, "boot")
	entries, err := os.ReadDir(boot)
	if err != nil {
		return "", fmt.Errorf("%w: %s", constants.ErrResourceMissing, boot)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.Contains(name, "-rescue-") {
			continue
		}
		if name == "initramfs.img" || strings.HasPrefix(name, "initramfs-") {
			return filepath.Join(boot, name), nil
		}
	}
	return "", fmt.Errorf("%w: no initramfs under %s", constants.ErrResourceMissing, boot)
}

// stageKernel copies the kernel, and optionally the initramfs, into
// dest/boot under their normalized names.
func stageKernel(chroot, dest string, withInitramfs bool) error {
	bootDir := filepath.Join(dest, "boot")
	if err := utils.CreateIfNotExists(bootDir); err != nil {
		return err
	}

	vmlinuz, err := FindVmlinuz(chroot)
	if err != nil {
		return err
	}
	utils.Log.Debug().Str("what", vmlinuz).Msg("Staging kernel")
	if err := utils.CopyFile(vmlinuz, filepath.Join(bootDir, "vmlinuz")); err != nil {
		return err
	}

	if !withInitramfs {
		return nil
	}
	initramfs, err := FindInitramfs(chroot)
	if err != nil {
		return err
	}
	utils.Log.Debug().Str("what", initramfs).Msg("Staging initramfs")
	return utils.CopyFile(initramfs, filepath.Join(bootDir, "initramfs.img"))
}
