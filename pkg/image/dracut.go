package image

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
)

const (
	dracutModules = "livenet dmsquash-live dmsquash-live-ntfs convertfs pollcdrom qemu qemu-net"
	dracutOmit    = "plymouth multipath"
)

var initramfsRe = regexp.MustCompile(`^initramfs-(.+)\.img$`)

// Dracut regenerates the initramfs inside the chroot with the live-boot
// module set.
func Dracut(chroot string) error {
	ver, err := installedKernelVersion(chroot)
	if err != nil {
		return err
	}
	utils.Log.Info().Str("kernel", ver).Msg("Regenerating initramfs")
	return utils.Run("unshare", "-R", chroot, "dracut",
		"--xz", "-vfNa", dracutModules, "-o", dracutOmit, "--no-early-microcode",
		fmt.Sprintf("/boot/initramfs-%s.img", ver), ver)
}

// installedKernelVersion reads the version out of the initramfs the package
// install dropped into boot/.
func installedKernelVersion(chroot string) (string, error) {
	boot := filepath.Join(chroot, "boot")
	entries, err := os.ReadDir(boot)
	if err != nil {
		return "", fmt.Errorf("%w: %s", constants.ErrResourceMissing, boot)
	}
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "-rescue-") {
			continue
		}
		if m := initramfsRe.FindStringSubmatch(entry.Name()); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: no initramfs under %s", constants.ErrResourceMissing, boot)
}
