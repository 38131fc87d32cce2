package pipeline

import (
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/builder"
	"github.com/fyralabs/katsu/pkg/image"
	"github.com/spectrocloud-labs/herd"
)

// RootDagStep builds the root tree into the chroot.
func (s *State) RootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseRoot, func() error {
		b, err := builder.New(s.Manifest, s.Workdir, s.Arch)
		if err != nil {
			return err
		}
		out, err := b.Build(s.Chroot(), s.Manifest)
		if err != nil {
			return err
		}
		utils.Log.Info().Str("where", out.Directory).Msg("Root tree built")
		return nil
	}, opts...)
}

// DracutDagStep regenerates the initramfs with the live modules.
func (s *State) DracutDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseDracut, func() error {
		return image.Dracut(s.Chroot())
	}, opts...)
}

// RootImgDagStep packs the chroot into the live root image.
func (s *State) RootImgDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseRootImg, func() error {
		liveDir := filepath.Join(s.ISOTree(), constants.LiveOSDir)
		if err := utils.CreateIfNotExists(liveDir); err != nil {
			return err
		}
		out := filepath.Join(liveDir, constants.SquashfsName)
		if s.Manifest.ISO != nil && s.Manifest.ISO.RootImg == "erofs" {
			return image.Erofs(s.Chroot(), out, s.Manifest.ISO.Erofs)
		}
		return image.Squashfs(s.Chroot(), out)
	}, opts...)
}

// CopyLiveDagStep stages kernel, initramfs, and bootloader files into the
// ISO tree.
func (s *State) CopyLiveDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseCopyLive, func() error {
		return s.stager.CopyLiveOS(s.Chroot(), s.ISOTree(), s.Manifest)
	}, opts...)
}

// ISODagStep masters the hybrid ISO.
func (s *State) ISODagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseISO, func() error {
		return image.Xorriso(s.ISOTree(), s.Manifest.OutputFile(), s.Manifest, s.stager.HybridMBR())
	}, opts...)
}

// BootloaderDagStep post-installs the bootloader into the finished artifact.
func (s *State) BootloaderDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseBootloader, func() error {
		return s.stager.Install(s.Manifest.OutputFile())
	}, opts...)
}

// DiskRootDagStep is the root phase of the disk output kind: partition a
// fresh image, mount it, build the root tree onto it, tear down, and publish
// the artifact.
func (s *State) DiskRootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseRoot, func() error {
		layout := s.Manifest.Disk
		img := s.DiskImage()
		if err := utils.CreateIfNotExists(filepath.Dir(img)); err != nil {
			return err
		}
		if err := utils.CreateSparseFile(img, int64(*layout.Size)); err != nil {
			return err
		}

		loop, err := utils.AttachLoop(img)
		if err != nil {
			return err
		}
		defer func() {
			if err := loop.Detach(); err != nil {
				utils.Log.Err(err).Str("what", loop.Device()).Msg("Detaching disk image")
			}
		}()

		if err := layout.Apply(loop.Device(), s.Arch); err != nil {
			return err
		}
		if err := layout.MountTo(loop.Device(), s.Chroot()); err != nil {
			return err
		}
		defer func() {
			if err := layout.UnmountFrom(loop.Device(), s.Chroot()); err != nil {
				utils.Log.Err(err).Msg("Unmounting disk image partitions")
			}
		}()

		b, err := builder.New(s.Manifest, s.Workdir, s.Arch)
		if err != nil {
			return err
		}
		if _, err := b.Build(s.Chroot(), s.Manifest); err != nil {
			return err
		}
		return nil
	}, opts...)
}

// PublishDiskDagStep copies the raw image to its final name. Registered as
// the iso phase slot so skip semantics stay uniform across output kinds.
func (s *State) PublishDiskDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return s.phase(g, constants.PhaseISO, func() error {
		out := s.Manifest.OutputFile()
		utils.Log.Info().Str("where", out).Msg("Publishing disk image")
		return utils.CopyFile(s.DiskImage(), out)
	}, opts...)
}
