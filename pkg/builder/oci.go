package builder

import (
	"fmt"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	"golang.org/x/sys/unix"
)

// derivedTag is the local tag given to a Containerfile-derived image.
const derivedTag = "katsu_deriv"

// OciRootBuilder populates the root tree by exporting a container image's
// filesystem. podman does the pulling, optional deriving, and exporting.
type OciRootBuilder struct {
	Workdir string
}

func (b *OciRootBuilder) Build(chroot string, m *manifest.Manifest) (TreeOutput, error) {
	abs, err := filepath.Abs(chroot)
	if err != nil {
		return TreeOutput{}, err
	}
	if err := utils.CreateIfNotExists(abs); err != nil {
		return TreeOutput{}, err
	}
	cfg := m.Bootc

	utils.Log.Info().Str("image", cfg.Image).Msg("Pulling container image")
	if err := utils.Run("podman", "pull", cfg.Image); err != nil {
		return TreeOutput{}, err
	}

	image := cfg.Image
	if cfg.ContainerFile != "" {
		image = fmt.Sprintf("%s:%s", cfg.Image, derivedTag)
		utils.Log.Info().Str("containerfile", cfg.ContainerFile).Str("tag", image).Msg("Deriving container image")
		if err := utils.Run("podman", "build",
			"-t", image,
			"--build-arg", "DERIVE_FROM="+cfg.Image,
			"-f", cfg.ContainerFile, "."); err != nil {
			return TreeOutput{}, err
		}
	}

	if err := b.export(image, abs); err != nil {
		return TreeOutput{}, err
	}

	if cfg.EmbedImage {
		if err := embedImage(image, abs); err != nil {
			return TreeOutput{}, err
		}
	}
	return TreeOutput{Directory: abs}, nil
}

// export unpacks the image's flattened filesystem into the chroot.
func (b *OciRootBuilder) export(image, chroot string) error {
	out, err := utils.RunCapture("podman", "create", image)
	if err != nil {
		return err
	}
	container := firstLine(out)
	defer func() {
		if _, err := utils.RunCapture("podman", "rm", container); err != nil {
			utils.Log.Warn().Err(err).Str("container", container).Msg("Removing export container")
		}
	}()

	utils.Log.Info().Str("image", image).Str("where", chroot).Msg("Exporting container filesystem")
	_, err = utils.RunCapture("sh", "-c",
		fmt.Sprintf("podman export %s | tar -x -C %s", container, chroot))
	return err
}

// embedImage pushes the image into the chroot's own container storage so the
// produced system boots with it preloaded.
func embedImage(image, chroot string) error {
	store := fmt.Sprintf("containers-storage:[overlay@%s/var/lib/containers/storage]%s", chroot, image)
	utils.Log.Info().Str("image", image).Msg("Embedding container image into target storage")
	if err := utils.Run("podman", "push", image, store); err != nil {
		return err
	}
	// podman leaves the overlay backing store mounted.
	overlay := filepath.Join(chroot, "var", "lib", "containers", "storage", "overlay")
	if err := unix.Unmount(overlay, 0); err != nil {
		utils.Log.Debug().Err(err).Str("what", overlay).Msg("Overlay store was not mounted")
	}
	return nil
}

func firstLine(out []byte) string {
	for i, b := range out {
		if b == '\n' {
			return string(out[:i])
		}
	}
	return string(out)
}
