package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/layout"
	"github.com/fyralabs/katsu/pkg/script"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Scripts are the user hook points around the root build.
type Scripts struct {
	Pre  []script.Script `yaml:"pre,omitempty"`
	Post []script.Script `yaml:"post,omitempty"`
}

// Manifest is the root configuration. Immutable after Load; the pipeline
// consumes it read-only.
type Manifest struct {
	Distro        string         `yaml:"distro,omitempty"`
	Output        OutputKind     `yaml:"output"`
	OutFile       string         `yaml:"out-file,omitempty"`
	Disk          *layout.Layout `yaml:"disk,omitempty"`
	Dnf           *DnfConfig     `yaml:"dnf,omitempty"`
	Bootc         *BootcConfig   `yaml:"bootc,omitempty"`
	Scripts       Scripts        `yaml:"scripts,omitempty"`
	Users         []User         `yaml:"users,omitempty"`
	KernelCmdline string         `yaml:"kernel-cmdline,omitempty"`
	ISO           *ISOConfig     `yaml:"iso,omitempty"`
	Bootloader    Bootloader     `yaml:"bootloader,omitempty"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", constants.ErrConfigInvalid, path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	if m.Output == "" {
		return fmt.Errorf("%w: output kind is required", constants.ErrConfigInvalid)
	}
	if m.Dnf == nil && m.Bootc == nil {
		return fmt.Errorf("%w: either a dnf or a bootc root builder must be configured", constants.ErrConfigInvalid)
	}
	if m.Dnf != nil && m.Bootc != nil {
		return fmt.Errorf("%w: dnf and bootc root builders are mutually exclusive", constants.ErrConfigInvalid)
	}
	if m.Dnf != nil && m.Dnf.ReleaseVer == "" {
		return fmt.Errorf("%w: dnf.releasever is required", constants.ErrConfigInvalid)
	}
	if m.Bootc != nil && m.Bootc.Image == "" {
		return fmt.Errorf("%w: bootc.image is required", constants.ErrConfigInvalid)
	}
	if m.Bootloader == "" {
		m.Bootloader = BootloaderGrub
	}
	if m.Disk != nil {
		if err := m.Disk.Validate(); err != nil {
			return err
		}
	}
	if m.Output == OutputDisk {
		if m.Disk == nil {
			return fmt.Errorf("%w: disk output requires a disk layout", constants.ErrConfigInvalid)
		}
		if m.Disk.Size == nil {
			return fmt.Errorf("%w: disk output requires disk.size", constants.ErrConfigInvalid)
		}
	}
	return nil
}

// VolumeID returns the ISO volume id, falling back to the default.
func (m *Manifest) VolumeID() string {
	if m.ISO != nil && m.ISO.VolumeID != "" {
		return m.ISO.VolumeID
	}
	return constants.DefaultVolID
}

// OutputFile returns the declared artifact path or a per-kind default.
func (m *Manifest) OutputFile() string {
	if m.OutFile != "" {
		return m.OutFile
	}
	switch m.Output {
	case OutputDisk:
		return "out.img"
	default:
		return "out.iso"
	}
}

// DistroName returns the display name, probing the built chroot's os-release
// when the manifest leaves it unset.
func (m *Manifest) DistroName(chroot string) string {
	if m.Distro != "" {
		return m.Distro
	}
	env, err := godotenv.Read(filepath.Join(chroot, "etc", "os-release"))
	if err == nil {
		if pretty := env["PRETTY_NAME"]; pretty != "" {
			return pretty
		}
		if name := env["NAME"]; name != "" {
			return name
		}
	}
	return "Linux"
}
