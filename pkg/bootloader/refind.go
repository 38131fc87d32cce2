package bootloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	cp "github.com/otiai10/copy"
)

const refindEfiBootMiB = 256

// refindShareDir is where the rEFInd package installs its payload inside the
// built root.
const refindShareDir = "usr/share/refind"

func (s *Stager) stageRefind(chroot, isoTree string, m *manifest.Manifest) error {
	share := filepath.Join(chroot, refindShareDir)
	if !dirExists(share) {
		return fmt.Errorf("%w: %s", constants.ErrResourceMissing, share)
	}

	efiBoot := filepath.Join(isoTree, "EFI", "BOOT")
	if err := utils.CreateIfNotExists(efiBoot); err != nil {
		return err
	}
	if err := utils.CopyFile(filepath.Join(share, "refind_x64.efi"), filepath.Join(efiBoot, "BOOTX64.EFI")); err != nil {
		return err
	}

	driversDir := filepath.Join(efiBoot, "drivers_x64")
	if err := utils.CreateIfNotExists(driversDir); err != nil {
		return err
	}
	for _, driver := range []string{"iso9660_x64.efi", "ext4_x64.efi"} {
		src := filepath.Join(share, "drivers_x64", driver)
		if err := utils.CopyFile(src, filepath.Join(driversDir, driver)); err != nil {
			return err
		}
	}
	if icons := filepath.Join(share, "icons"); dirExists(icons) {
		if err := cp.Copy(icons, filepath.Join(efiBoot, "icons")); err != nil {
			return err
		}
	}

	if err := stageKernel(chroot, isoTree, true); err != nil {
		return err
	}

	cfg, err := renderTemplate(refindTemplate, s.templateData(chroot, m))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(efiBoot, "refind.conf"), []byte(cfg), 0644); err != nil {
		return err
	}
	startup := "\\EFI\\BOOT\\BOOTX64.EFI\n"
	if err := os.WriteFile(filepath.Join(efiBoot, "startup.nsh"), []byte(startup), 0644); err != nil {
		return err
	}

	// rEFInd boots straight from the ESP, so the kernel and initramfs ride
	// inside the EFI image too.
	sources := map[string]string{efiBoot: filepath.Join("EFI", "BOOT")}
	sources[filepath.Join(isoTree, "boot", "vmlinuz")] = filepath.Join("boot", "vmlinuz")
	sources[filepath.Join(isoTree, "boot", "initramfs.img")] = filepath.Join("boot", "initramfs.img")
	return buildEfiBootImage(filepath.Join(isoTree, "boot", "efiboot.img"), refindEfiBootMiB, sources)
}
