package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/bootloader"
	"github.com/fyralabs/katsu/pkg/manifest"
	"github.com/spectrocloud-labs/herd"
)

// State carries everything a pipeline run needs: the manifest, the target
// architecture, the workspace root, and the set of phases to skip.
type State struct {
	Manifest   *manifest.Manifest
	Arch       string
	Workdir    string
	SkipPhases []string

	stager *bootloader.Stager
}

func New(m *manifest.Manifest, arch, workdir string, skipPhases []string) *State {
	return &State{
		Manifest:   m,
		Arch:       arch,
		Workdir:    workdir,
		SkipPhases: skipPhases,
		stager:     bootloader.New(m.Bootloader, workdir, arch),
	}
}

func (s *State) path(p ...string) string {
	return filepath.Join(append([]string{s.Workdir}, p...)...)
}

// Chroot is where the root tree is built.
func (s *State) Chroot() string {
	return s.path(constants.ChrootDir)
}

// ISOTree is the staging area the ISO is mastered from.
func (s *State) ISOTree() string {
	return s.path(constants.ISOTreeDir)
}

// DiskImage is the raw disk image the disk output kind partitions.
func (s *State) DiskImage() string {
	return s.path(constants.ImageDir, constants.DiskImage)
}

func (s *State) skipped(phase string) bool {
	for _, p := range s.SkipPhases {
		if p == phase {
			return true
		}
	}
	return false
}

// phase registers a named, skippable step. A skipped phase stays in the
// graph so the DAG shape never depends on the skip set.
func (s *State) phase(g *herd.Graph, name string, fn func() error, opts ...herd.OpOption) error {
	return g.Add(name, append(opts, herd.WithCallback(func(_ context.Context) error {
		if s.skipped(name) {
			utils.Log.Info().Str("phase", name).Msg("Phase skipped")
			return nil
		}
		utils.Log.Info().Str("phase", name).Msg("Phase starting")
		if err := fn(); err != nil {
			utils.Log.Err(err).Str("phase", name).Msg("Phase failed")
			return err
		}
		utils.Log.Info().Str("phase", name).Msg("Phase done")
		return nil
	}))...)
}

// WriteDAG renders the analyzed graph layer by layer.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (run: %t)\n", op.Name, op.Error.Error(), op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (run: %t)\n", op.Name, op.Executed)
			}
		}
	}
	return
}
