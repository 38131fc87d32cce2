package image

import (
	"fmt"
	"strings"

	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
)

// erofs defaults, used when the manifest leaves a knob unset.
const (
	erofsCompression = "zstd,level=5"
	erofsChunkSize   = 1048576
	erofsXattrLevel  = 1
)

var erofsDefaultExcludes = []string{"/sys/", "/proc/"}
var erofsDefaultFeatures = []string{"all-fragments", "fragdedupe=inode"}

// Squashfs packs the chroot into a squashfs image at out.
func Squashfs(chroot, out string) error {
	utils.Log.Info().Str("what", chroot).Str("where", out).Msg("Packing squashfs")
	_, err := utils.RunCapture("mksquashfs", chroot, out,
		"-comp", "xz", "-Xbcj", "x86", "-b", "1048576", "-noappend")
	return err
}

// Erofs packs the chroot into an erofs image at out, honoring the manifest's
// tunables.
func Erofs(chroot, out string, cfg *manifest.ErofsConfig) error {
	if cfg == nil {
		cfg = &manifest.ErofsConfig{}
	}
	compression := cfg.Compression
	if compression == "" {
		compression = erofsCompression
	}
	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = erofsChunkSize
	}
	xattr := erofsXattrLevel
	if cfg.XattrLevel != nil {
		xattr = *cfg.XattrLevel
	}
	features := cfg.ExtraFeatures
	if len(features) == 0 {
		features = erofsDefaultFeatures
	}
	excludes := utils.UniqueSlice(append(append([]string{}, erofsDefaultExcludes...), cfg.ExcludePaths...))

	args := []string{
		"-z" + compression,
		fmt.Sprintf("-C%d", chunk),
		fmt.Sprintf("-x%d", xattr),
		"-E" + strings.Join(features, ","),
	}
	for _, path := range excludes {
		args = append(args, "--exclude-path="+path)
	}
	args = append(args, out, chroot)

	utils.Log.Info().Str("what", chroot).Str("where", out).Msg("Packing erofs")
	_, err := utils.RunCapture("mkfs.erofs", args...)
	return err
}
