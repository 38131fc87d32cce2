package builder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	"github.com/fyralabs/katsu/pkg/script"
)

// DnfRootBuilder populates the root tree by installing packages with dnf on
// the host, pointed at the chroot through --installroot.
type DnfRootBuilder struct {
	Workdir string
	Arch    string
}

func (b *DnfRootBuilder) Build(chroot string, m *manifest.Manifest) (TreeOutput, error) {
	abs, err := filepath.Abs(chroot)
	if err != nil {
		return TreeOutput{}, err
	}
	if err := utils.CreateIfNotExists(abs); err != nil {
		return TreeOutput{}, err
	}

	pre := &script.Runner{Chroot: abs, Workdir: b.Workdir, InChroot: false}
	if err := pre.RunAll(m.Scripts.Pre); err != nil {
		return TreeOutput{}, err
	}

	// When the tree is being built onto mounted partitions the fstab has to
	// land before packages do, so %post scriptlets see the final layout.
	if m.Disk != nil {
		content, err := m.Disk.Fstab(abs)
		if err != nil {
			return TreeOutput{}, err
		}
		if err := utils.CreateIfNotExists(filepath.Join(abs, "etc")); err != nil {
			return TreeOutput{}, err
		}
		if err := os.WriteFile(filepath.Join(abs, "etc", "fstab"), []byte(content), 0644); err != nil {
			return TreeOutput{}, err
		}
	}

	cr := utils.NewChroot(abs)
	err = cr.Scope(func() error {
		if err := b.install(abs, m.Dnf); err != nil {
			return err
		}
		if _, err := utils.RunCapture("dnf", "clean", "all", "--installroot="+abs); err != nil {
			utils.Log.Warn().Err(err).Msg("dnf clean all failed, the image will carry cached metadata")
		}
		if err := applyUsers(abs, m.Users); err != nil {
			return err
		}
		if m.Bootloader == manifest.BootloaderGrub || m.Bootloader == manifest.BootloaderGrubBios {
			if _, err := utils.RunCapture("unshare", "-R", abs, "grub2-mkconfig", "-o", "/boot/grub2/grub.cfg"); err != nil {
				utils.Log.Warn().Err(err).Msg("grub2-mkconfig failed, continuing without a generated grub.cfg")
			}
		}
		post := &script.Runner{Chroot: abs, Workdir: b.Workdir, InChroot: true}
		return post.RunAll(m.Scripts.Post)
	})
	if err != nil {
		return TreeOutput{}, err
	}
	return TreeOutput{Directory: abs}, nil
}

func (b *DnfRootBuilder) install(chroot string, cfg *manifest.DnfConfig) error {
	packages := cfg.PackagesFor(b.Arch)
	if len(packages) == 0 {
		return fmt.Errorf("%w: no packages to install for %s", constants.ErrConfigInvalid, b.Arch)
	}

	args := []string{"install", "-y", "--installroot=" + chroot, "--releasever=" + cfg.ReleaseVer}
	if b.Arch != "" {
		args = append(args, "--forcearch="+b.Arch)
	}
	if cfg.RepoDir != "" {
		repodir, err := filepath.Abs(cfg.RepoDir)
		if err != nil {
			return err
		}
		args = append(args, "--setopt=reposdir="+repodir)
	}
	args = append(args, packages...)
	for _, pkg := range cfg.ExcludeFor(b.Arch) {
		args = append(args, "--exclude="+pkg)
	}

	utils.Log.Info().Int("packages", len(packages)).Str("releasever", cfg.ReleaseVer).Msg("Installing packages")
	return utils.Run("dnf", args...)
}
