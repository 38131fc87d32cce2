package layout

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fyralabs/katsu/internal/constants"
	"github.com/gofrs/uuid"
	"gopkg.in/yaml.v3"
)

// Well-known GPT partition type GUIDs (from the discoverable partitions
// spec). Root is a pseudo-type resolved per target arch at apply time.
const (
	GuidRootX86_64   = "4F68BCE3-E8CD-4DB1-96E7-FBCAF984B709"
	GuidRootArm64    = "B921B045-1DF0-41C3-AF44-4C6F280D3FAE"
	GuidEsp          = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"
	GuidXbootldr     = "BC13C2FF-59E6-4262-A352-B275FD6F7172"
	GuidSwap         = "0657FD6D-A4AB-43C4-84E5-0933C84B4F4F"
	GuidLinuxGeneric = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"
)

// GptType is the declared partition type: a named alias or a raw GUID.
type GptType struct {
	name string // root, root-arm64, root-x86_64, esp, xbootldr, swap, linux-generic
	guid string // set when declared as a raw GUID
}

func NamedGptType(name string) GptType { return GptType{name: name} }

func (t GptType) IsZero() bool { return t.name == "" && t.guid == "" }

// Resolve maps the type to its GUID for the given target arch. The root
// pseudo-type is rejected for arches outside the table.
func (t GptType) Resolve(arch string) (string, error) {
	if t.guid != "" {
		return t.guid, nil
	}
	switch t.name {
	case "root":
		switch arch {
		case "x86_64":
			return GuidRootX86_64, nil
		case "aarch64":
			return GuidRootArm64, nil
		default:
			return "", fmt.Errorf("%w: no root partition GUID for %q", constants.ErrUnsupportedArch, arch)
		}
	case "root-x86_64":
		return GuidRootX86_64, nil
	case "root-arm64", "root-aarch64":
		return GuidRootArm64, nil
	case "esp":
		return GuidEsp, nil
	case "xbootldr":
		return GuidXbootldr, nil
	case "swap":
		return GuidSwap, nil
	case "linux-generic", "":
		return GuidLinuxGeneric, nil
	}
	return "", fmt.Errorf("%w: unknown partition type %q", constants.ErrConfigInvalid, t.name)
}

func (t *GptType) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch raw {
	case "root", "root-x86_64", "root-arm64", "root-aarch64", "esp", "xbootldr", "swap", "linux-generic":
		t.name = raw
		return nil
	}
	parsed, err := uuid.FromString(raw)
	if err != nil {
		return fmt.Errorf("partition type %q is neither a known alias nor a GUID: %w", raw, err)
	}
	t.guid = strings.ToUpper(parsed.String())
	return nil
}

// PartitionFlag is a GPT attribute bit, declared by name or raw bit index.
type PartitionFlag uint8

const (
	FlagGrowFs   PartitionFlag = 59
	FlagReadOnly PartitionFlag = 60
	FlagNoAuto   PartitionFlag = 63
)

func (f *PartitionFlag) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err == nil {
		switch name {
		case "grow-fs":
			*f = FlagGrowFs
			return nil
		case "read-only":
			*f = FlagReadOnly
			return nil
		case "no-auto":
			*f = FlagNoAuto
			return nil
		}
	}
	var bit int
	if err := value.Decode(&bit); err != nil {
		return fmt.Errorf("partition flag must be a name or a bit index: %w", err)
	}
	if bit < 0 || bit > 63 {
		return fmt.Errorf("partition flag bit %d out of range 0-63", bit)
	}
	*f = PartitionFlag(bit)
	return nil
}

// Size is a byte count declared with human units ("512MiB", "8 GiB").
type Size uint64

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	bytes, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", raw, err)
	}
	*s = Size(bytes)
	return nil
}

// Subvolume is a btrfs subvolume created inside its parent partition and
// mounted at its own mountpoint.
type Subvolume struct {
	Name       string `yaml:"name"`
	Mountpoint string `yaml:"mountpoint"`
}

// Partition is one declarative GPT partition. Index on disk is declaration
// order + 1. A nil Size extends the partition to the end of the disk, which
// is only legal for the last partition.
type Partition struct {
	Label      string          `yaml:"label,omitempty"`
	Size       *Size           `yaml:"size,omitempty"`
	Filesystem string          `yaml:"filesystem"`
	Mountpoint string          `yaml:"mountpoint"`
	Type       GptType         `yaml:"type,omitempty"`
	Flags      []PartitionFlag `yaml:"flags,omitempty"`
	Subvolumes []Subvolume     `yaml:"subvolumes,omitempty"`
}

// FstabType normalizes the declared filesystem for mount/fstab purposes.
func (p Partition) FstabType() string {
	if p.Filesystem == "efi" {
		return "vfat"
	}
	return p.Filesystem
}

// Layout is the declarative partition table.
type Layout struct {
	Size       *Size       `yaml:"size,omitempty"`
	Partitions []Partition `yaml:"partitions"`
}

// Validate checks the structural invariants: a non-empty table and at most
// one unsized partition, which must be last.
func (l *Layout) Validate() error {
	if len(l.Partitions) == 0 {
		return fmt.Errorf("%w: disk layout has no partitions", constants.ErrConfigInvalid)
	}
	for i, part := range l.Partitions {
		if part.Filesystem == "" {
			return fmt.Errorf("%w: partition %d has no filesystem", constants.ErrConfigInvalid, i+1)
		}
		if part.Size == nil && i != len(l.Partitions)-1 {
			return fmt.Errorf("%w: only the last partition may omit its size (partition %d)", constants.ErrConfigInvalid, i+1)
		}
	}
	return nil
}
