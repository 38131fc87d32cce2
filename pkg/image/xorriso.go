package image

import (
	"fmt"
	"os"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
)

// GPT type GUIDs xorriso stamps onto the hybrid ISO.
const (
	espPartGuid   = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	isoMbrPartTyp = "EBD0A0A2-B9E5-4433-87C0-68B6B72699C7"
)

// XorrisoArgs assembles the mkisofs-emulation argument list for the chosen
// bootloader. hybridMBR may be empty or missing, which drops BIOS hybrid
// boot support from the ISO.
func XorrisoArgs(isoTree, outISO string, m *manifest.Manifest, hybridMBR string) ([]string, error) {
	args := []string{"-as", "mkisofs", "-R", "-V", m.VolumeID()}

	switch m.Bootloader {
	case manifest.BootloaderGrub:
		if hybridMBR != "" {
			if _, err := os.Stat(hybridMBR); err == nil {
				args = append(args, "--grub2-mbr", hybridMBR)
			}
		}
		args = append(args,
			"-partition_offset", "16",
			"-appended_part_as_gpt",
			"-append_partition", "2", espPartGuid, isoTree+"/boot/efiboot.img",
			"-iso_mbr_part_type", isoMbrPartTyp,
			"-b", "boot/eltorito.img",
			"-no-emul-boot", "-boot-load-size", "4", "-boot-info-table", "--grub2-boot-info",
			"-eltorito-alt-boot",
			"-e", "--interval:appended_partition_2:all::",
			"-no-emul-boot",
		)
	case manifest.BootloaderLimine:
		args = append(args,
			"-b", "boot/limine-bios-cd.bin",
			"-no-emul-boot", "-boot-load-size", "4", "-boot-info-table",
			"--efi-boot", "boot/limine-uefi-cd.bin",
			"-efi-boot-part", "--efi-boot-image",
		)
	case manifest.BootloaderREFInd:
		args = append(args,
			"--efi-boot", "boot/efiboot.img",
			"-efi-boot-part", "--efi-boot-image",
		)
	default:
		return nil, fmt.Errorf("%w: cannot master an ISO for bootloader %q", constants.ErrUnsupported, m.Bootloader)
	}

	args = append(args, "-o", outISO, isoTree)
	return args, nil
}

// Xorriso masters the hybrid ISO from the staged tree.
func Xorriso(isoTree, outISO string, m *manifest.Manifest, hybridMBR string) error {
	args, err := XorrisoArgs(isoTree, outISO, m, hybridMBR)
	if err != nil {
		return err
	}
	utils.Log.Info().Str("where", outISO).Str("volid", m.VolumeID()).Msg("Mastering ISO")
	return utils.Run("xorriso", args...)
}
