package bootloader

import (
	"os"
	"path/filepath"

	"github.com/containerd/containerd/mount"
	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	cp "github.com/otiai10/copy"
	"golang.org/x/sys/unix"
)

// buildEfiBootImage creates a FAT image of sizeMiB at imagePath and fills it
// with the given directory trees, each copied to the image root. The image is
// what xorriso later appends as the ESP.
func buildEfiBootImage(imagePath string, sizeMiB int64, sources map[string]string) error {
	if err := os.RemoveAll(imagePath); err != nil {
		return err
	}
	if err := utils.CreateSparseFile(imagePath, sizeMiB*1024*1024); err != nil {
		return err
	}
	if _, err := utils.RunCapture("mkfs.msdos", "-v", "-n", "EFI", imagePath); err != nil {
		return err
	}

	loop, err := utils.AttachLoop(imagePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := loop.Detach(); err != nil {
			utils.Log.Err(err).Str("what", loop.Device()).Msg("Detaching efiboot loop device")
		}
	}()

	mountPoint := constants.EfiBootMount
	if err := utils.CreateIfNotExists(mountPoint); err != nil {
		return err
	}
	if err := mount.All([]mount.Mount{{Type: "vfat", Source: loop.Device()}}, mountPoint); err != nil {
		return err
	}
	defer func() {
		if err := unix.Unmount(mountPoint, 0); err != nil {
			utils.Log.Err(err).Str("what", mountPoint).Msg("Unmounting efiboot image")
		}
	}()

	for src, dst := range sources {
		target := filepath.Join(mountPoint, dst)
		if err := utils.CreateIfNotExists(filepath.Dir(target)); err != nil {
			return err
		}
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			err = cp.Copy(src, target)
		} else {
			err = utils.CopyFile(src, target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
