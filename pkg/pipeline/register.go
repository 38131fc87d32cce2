package pipeline

import (
	"fmt"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/manifest"
	"github.com/hashicorp/go-multierror"
	"github.com/spectrocloud-labs/herd"
)

// Register wires the phase chain for the manifest's output kind into g.
func (s *State) Register(g *herd.Graph) error {
	switch s.Manifest.Output {
	case manifest.OutputISO:
		return s.registerISO(g)
	case manifest.OutputDisk:
		return s.registerDisk(g)
	case manifest.OutputFolder:
		return s.RootDagStep(g)
	case manifest.OutputDevice:
		return fmt.Errorf("%w: the device output kind is not implemented", constants.ErrUnsupported)
	}
	return fmt.Errorf("%w: unknown output kind %q", constants.ErrConfigInvalid, s.Manifest.Output)
}

func (s *State) registerISO(g *herd.Graph) error {
	var err *multierror.Error
	err = multierror.Append(err, s.RootDagStep(g))
	err = multierror.Append(err, s.DracutDagStep(g, herd.WithDeps(constants.PhaseRoot)))
	err = multierror.Append(err, s.RootImgDagStep(g, herd.WithDeps(constants.PhaseDracut)))
	err = multierror.Append(err, s.CopyLiveDagStep(g, herd.WithDeps(constants.PhaseRootImg)))
	err = multierror.Append(err, s.ISODagStep(g, herd.WithDeps(constants.PhaseCopyLive)))
	err = multierror.Append(err, s.BootloaderDagStep(g, herd.WithDeps(constants.PhaseISO)))
	return err.ErrorOrNil()
}

func (s *State) registerDisk(g *herd.Graph) error {
	var err *multierror.Error
	err = multierror.Append(err, s.DiskRootDagStep(g))
	err = multierror.Append(err, s.PublishDiskDagStep(g, herd.WithDeps(constants.PhaseRoot)))
	err = multierror.Append(err, s.BootloaderDagStep(g, herd.WithDeps(constants.PhaseISO)))
	return err.ErrorOrNil()
}
