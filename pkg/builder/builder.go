package builder

import (
	"fmt"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/manifest"
)

// TreeOutput describes where the built root tree ended up. Today that is
// always a directory; a packed tarball output is reserved for later.
type TreeOutput struct {
	Directory string
}

// RootBuilder populates a root tree from the manifest's chosen source.
type RootBuilder interface {
	Build(chroot string, m *manifest.Manifest) (TreeOutput, error)
}

// New returns the realization selected by the manifest: package-manager
// based or OCI based.
func New(m *manifest.Manifest, workdir, arch string) (RootBuilder, error) {
	switch {
	case m.Dnf != nil:
		return &DnfRootBuilder{Workdir: workdir, Arch: arch}, nil
	case m.Bootc != nil:
		return &OciRootBuilder{Workdir: workdir}, nil
	}
	return nil, fmt.Errorf("%w: no root builder configured", constants.ErrConfigInvalid)
}
