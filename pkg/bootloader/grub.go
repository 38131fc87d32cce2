package bootloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/containerd/containerd/mount"
	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	cp "github.com/otiai10/copy"
	"golang.org/x/sys/unix"
)

const grubEfiBootMiB = 25

func (s *Stager) stageGrub(chroot, isoTree string, m *manifest.Manifest) error {
	info, err := lookupArch(s.Arch)
	if err != nil {
		return err
	}

	if s.Arch == "x86_64" {
		if err := s.copyHybridImage(chroot); err != nil {
			return err
		}
	}

	bootDir := filepath.Join(isoTree, "boot")
	if err := os.RemoveAll(bootDir); err != nil {
		return err
	}
	if err := utils.CreateIfNotExists(bootDir); err != nil {
		return err
	}

	grubSrc := filepath.Join(chroot, "boot", "grub2")
	if _, err := os.Stat(grubSrc); err != nil {
		grubSrc = filepath.Join(chroot, "boot", "grub")
	}
	if _, err := os.Stat(grubSrc); err != nil {
		return fmt.Errorf("%w: no grub directory under %s/boot", constants.ErrResourceMissing, chroot)
	}
	if err := cp.Copy(grubSrc, filepath.Join(bootDir, "grub")); err != nil {
		return err
	}
	if efiSrc := filepath.Join(chroot, "boot", "efi"); dirExists(efiSrc) {
		if err := cp.Copy(filepath.Join(efiSrc, "EFI"), filepath.Join(isoTree, "EFI")); err != nil {
			return err
		}
	}

	if err := stageKernel(chroot, isoTree, true); err != nil {
		return err
	}

	cfg, err := renderTemplate(grubTemplate, s.templateData(chroot, m))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(bootDir, "grub", "grub.cfg"), []byte(cfg), 0644); err != nil {
		return err
	}

	if err := s.populateEfiBoot(chroot, isoTree, cfg, info); err != nil {
		return err
	}

	if err := s.makeEltorito(chroot, bootDir, info); err != nil {
		return err
	}
	if err := s.mergeRescueTree(isoTree); err != nil {
		return err
	}

	return buildEfiBootImage(filepath.Join(bootDir, "efiboot.img"), grubEfiBootMiB,
		map[string]string{filepath.Join(isoTree, "EFI", "BOOT"): filepath.Join("EFI", "BOOT")})
}

// copyHybridImage parks GRUB's BIOS hybrid MBR for xorriso. Its absence only
// costs BIOS bootability, so it degrades to a warning.
func (s *Stager) copyHybridImage(chroot string) error {
	src := filepath.Join(chroot, "usr", "lib", "grub", "i386-pc", "boot_hybrid.img")
	if _, err := os.Stat(src); err != nil {
		utils.Log.Warn().Str("what", src).Msg("Hybrid boot image missing, the ISO will not boot from BIOS")
		return nil
	}
	if err := utils.CreateIfNotExists(filepath.Dir(s.HybridMBR())); err != nil {
		return err
	}
	return utils.CopyFile(src, s.HybridMBR())
}

func (s *Stager) populateEfiBoot(chroot, isoTree, cfg string, info archInfo) error {
	efiBoot := filepath.Join(isoTree, "EFI", "BOOT")
	if err := utils.CreateIfNotExists(efiBoot); err != nil {
		return err
	}

	for _, name := range []string{"BOOT.conf", "grub.cfg"} {
		if err := os.WriteFile(filepath.Join(efiBoot, name), []byte(cfg), 0644); err != nil {
			return err
		}
	}

	font := filepath.Join(chroot, "usr", "share", "grub", "unicode.pf2")
	if _, err := os.Stat(font); err == nil {
		fontsDir := filepath.Join(efiBoot, "fonts")
		if err := utils.CreateIfNotExists(fontsDir); err != nil {
			return err
		}
		if err := utils.CopyFile(font, filepath.Join(fontsDir, "unicode.pf2")); err != nil {
			return err
		}
	}

	// Firmware looks the fallback loaders up by their canonical upper-case
	// names on a case-sensitive iso-tree.
	shims := map[string]string{
		"shim" + info.Short + ".efi": "BOOT" + info.ShortUpper + ".EFI",
		"shim.efi":                   "BOOT" + info.Legacy + ".EFI",
	}
	for src, dst := range shims {
		from := filepath.Join(efiBoot, src)
		if _, err := os.Stat(from); err != nil {
			utils.Log.Debug().Str("what", from).Msg("Shim not present, skipping")
			continue
		}
		if err := utils.CopyFile(from, filepath.Join(efiBoot, dst)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stager) makeEltorito(chroot, bootDir string, info archInfo) error {
	args := []string{
		"-O", info.GrubImageFormat,
		"-d", filepath.Join(chroot, "usr", "lib", "grub", info.GrubPlatform),
		"-p", "/boot/grub",
		"-o", filepath.Join(bootDir, "eltorito.img"),
		"iso9660",
	}
	args = append(args, info.ExtraModules...)
	_, err := utils.RunCapture("grub2-mkimage", args...)
	return err
}

// mergeRescueTree builds a throwaway grub rescue ISO and copies its module
// tree over ours, which fills in the platform modules grub expects at boot.
func (s *Stager) mergeRescueTree(isoTree string) error {
	rescue := filepath.Join(s.Workdir, constants.BootImagesDir, "rescue.iso")
	if err := utils.CreateIfNotExists(filepath.Dir(rescue)); err != nil {
		return err
	}
	if _, err := utils.RunCapture("grub2-mkrescue", "-o", rescue); err != nil {
		return err
	}
	defer os.Remove(rescue)

	loop, err := utils.AttachLoop(rescue)
	if err != nil {
		return err
	}
	defer func() {
		if err := loop.Detach(); err != nil {
			utils.Log.Err(err).Str("what", loop.Device()).Msg("Detaching rescue loop device")
		}
	}()

	mountPoint := constants.EfiBootAltMount
	if err := utils.CreateIfNotExists(mountPoint); err != nil {
		return err
	}
	if err := mount.All([]mount.Mount{{Type: "iso9660", Source: loop.Device(), Options: []string{"ro"}}}, mountPoint); err != nil {
		return err
	}
	defer func() {
		if err := unix.Unmount(mountPoint, 0); err != nil {
			utils.Log.Err(err).Str("what", mountPoint).Msg("Unmounting rescue image")
		}
	}()

	return cp.Copy(filepath.Join(mountPoint, "boot", "grub"), filepath.Join(isoTree, "boot", "grub"))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
