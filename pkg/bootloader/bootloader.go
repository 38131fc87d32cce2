package bootloader

import (
	"fmt"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
)

// Stager stages a bootloader into the ISO tree and post-installs it into
// finished artifacts.
type Stager struct {
	Variant manifest.Bootloader
	Workdir string // workspace root, sidecar artifacts land here
	Arch    string
}

func New(variant manifest.Bootloader, workdir, arch string) *Stager {
	return &Stager{Variant: variant, Workdir: workdir, Arch: arch}
}

// CopyLiveOS stages kernel, initramfs, configs, and boot images from the
// built chroot into the ISO tree.
func (s *Stager) CopyLiveOS(chroot, isoTree string, m *manifest.Manifest) error {
	utils.Log.Info().Str("bootloader", string(s.Variant)).Msg("Staging bootloader")
	switch s.Variant {
	case manifest.BootloaderGrub:
		return s.stageGrub(chroot, isoTree, m)
	case manifest.BootloaderLimine:
		return s.stageLimine(chroot, isoTree, m)
	case manifest.BootloaderREFInd:
		return s.stageRefind(chroot, isoTree, m)
	case manifest.BootloaderGrubBios, manifest.BootloaderSystemdBoot:
		return fmt.Errorf("%w: %s cannot be staged onto live media", constants.ErrUnsupported, s.Variant)
	}
	return fmt.Errorf("%w: unknown bootloader %q", constants.ErrConfigInvalid, s.Variant)
}

// Install post-installs the bootloader into a finished image. Variants whose
// staging is self-contained are no-ops.
func (s *Stager) Install(image string) error {
	switch s.Variant {
	case manifest.BootloaderLimine:
		_, err := utils.RunCapture("limine", "bios-install", image)
		return err
	case manifest.BootloaderSystemdBoot:
		_, err := utils.RunCapture("bootctl", "--image="+image, "install")
		return err
	case manifest.BootloaderGrubBios:
		_, err := utils.RunCapture("grub-install", "--target=i386-pc",
			"--boot-directory="+filepath.Join(image, "boot"))
		return err
	}
	return nil
}

// HybridMBR is where GRUB staging parks the BIOS hybrid boot image for the
// ISO mastering step.
func (s *Stager) HybridMBR() string {
	return filepath.Join(s.Workdir, constants.BootImagesDir, "boot_hybrid.img")
}

func (s *Stager) templateData(chroot string, m *manifest.Manifest) templateData {
	return templateData{
		VolumeID:  m.VolumeID(),
		Distro:    m.DistroName(chroot),
		Vmlinuz:   "/boot/vmlinuz",
		Initramfs: "/boot/initramfs.img",
		Cmdline:   m.KernelCmdline,
	}
}
