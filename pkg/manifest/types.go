package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// OutputKind selects the artifact the pipeline produces.
type OutputKind string

const (
	OutputISO    OutputKind = "iso"
	OutputDisk   OutputKind = "disk"
	OutputDevice OutputKind = "device"
	OutputFolder OutputKind = "folder"
)

func ParseOutputKind(s string) (OutputKind, error) {
	switch s {
	case "iso":
		return OutputISO, nil
	case "disk", "disk-image":
		return OutputDisk, nil
	case "device":
		return OutputDevice, nil
	case "folder":
		return OutputFolder, nil
	}
	return "", fmt.Errorf("unknown output kind %q", s)
}

func (o *OutputKind) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	kind, err := ParseOutputKind(raw)
	if err != nil {
		return err
	}
	*o = kind
	return nil
}

// Bootloader is the five-way bootloader variant. Staging and post-install
// behavior is keyed on it in pkg/bootloader.
type Bootloader string

const (
	BootloaderGrub        Bootloader = "grub"
	BootloaderGrubBios    Bootloader = "grub-bios"
	BootloaderLimine      Bootloader = "limine"
	BootloaderSystemdBoot Bootloader = "systemd-boot"
	BootloaderREFInd      Bootloader = "refind"
)

func ParseBootloader(s string) (Bootloader, error) {
	switch s {
	case "grub", "grub2":
		return BootloaderGrub, nil
	case "grub-bios":
		return BootloaderGrubBios, nil
	case "limine":
		return BootloaderLimine, nil
	case "systemd-boot", "sdboot":
		return BootloaderSystemdBoot, nil
	case "refind", "rEFInd":
		return BootloaderREFInd, nil
	}
	return "", fmt.Errorf("unknown bootloader %q", s)
}

func (b *Bootloader) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	bl, err := ParseBootloader(raw)
	if err != nil {
		return err
	}
	*b = bl
	return nil
}

// User is created inside the chroot with useradd once the package set is in
// place.
type User struct {
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password,omitempty"` // pre-hashed
	Groups     []string `yaml:"groups,omitempty"`
	CreateHome *bool    `yaml:"create-home,omitempty"` // default true
	Shell      string   `yaml:"shell,omitempty"`
	UID        *int     `yaml:"uid,omitempty"`
	GID        *int     `yaml:"gid,omitempty"`
	SSHKeys    []string `yaml:"ssh-keys,omitempty"`
}

func (u User) WantsHome() bool {
	return u.CreateHome == nil || *u.CreateHome
}

// DnfConfig drives the package-manager root builder.
type DnfConfig struct {
	ReleaseVer   string              `yaml:"releasever"`
	Packages     []string            `yaml:"packages,omitempty"`
	ArchPackages map[string][]string `yaml:"arch-packages,omitempty"`
	Exclude      []string            `yaml:"exclude,omitempty"`
	ArchExclude  map[string][]string `yaml:"arch-exclude,omitempty"`
	RepoDir      string              `yaml:"repodir,omitempty"`
}

// PackagesFor merges the global package list with the per-arch one.
func (d *DnfConfig) PackagesFor(arch string) []string {
	return append(append([]string{}, d.Packages...), d.ArchPackages[arch]...)
}

// ExcludeFor merges the global exclude list with the per-arch one.
func (d *DnfConfig) ExcludeFor(arch string) []string {
	return append(append([]string{}, d.Exclude...), d.ArchExclude[arch]...)
}

// BootcConfig drives the OCI root builder.
type BootcConfig struct {
	Image         string `yaml:"image"`
	ContainerFile string `yaml:"containerfile,omitempty"`
	EmbedImage    bool   `yaml:"embed-image,omitempty"`
}

// ISOConfig tunes the ISO artifact.
type ISOConfig struct {
	VolumeID string       `yaml:"volume-id,omitempty"`
	RootImg  string       `yaml:"rootimg,omitempty"` // squashfs (default) or erofs
	Erofs    *ErofsConfig `yaml:"erofs,omitempty"`
}

// ErofsConfig mirrors the mkfs.erofs tunables the engine passes through.
type ErofsConfig struct {
	Compression   string   `yaml:"compression,omitempty"`
	ChunkSize     int      `yaml:"chunk-size,omitempty"`
	XattrLevel    *int     `yaml:"xattr-level,omitempty"`
	ExcludePaths  []string `yaml:"exclude,omitempty"`
	ExtraFeatures []string `yaml:"extra-features,omitempty"`
}
