package constants

import "errors"

// Error kinds surfaced by the engine. Wrapping errors carry the details,
// callers match with errors.Is.
var (
	ErrConfigInvalid   = errors.New("invalid manifest")
	ErrResourceMissing = errors.New("expected file missing")
	ErrExternalFailure = errors.New("external command failed")
	ErrScriptFailure   = errors.New("script failed")
	ErrUnsupportedArch = errors.New("unsupported architecture")
	ErrUnsupported     = errors.New("not supported")
)

// Pipeline phases, in the order they run for the ISO output kind.
const (
	PhaseRoot       = "root"
	PhaseDracut     = "dracut"
	PhaseRootImg    = "rootimg"
	PhaseCopyLive   = "copy-live"
	PhaseISO        = "iso"
	PhaseBootloader = "bootloader"
)

// Workspace layout. Everything the engine writes lives under WorkDir,
// relative to the current working directory.
const (
	WorkDir       = "katsu-work"
	ChrootDir     = "chroot"
	ISOTreeDir    = "iso-tree"
	ImageDir      = "image"
	LiveOSDir     = "LiveOS"
	BootImagesDir = "boot-images"
	DiskImage     = "katsu.img"
	SquashfsName  = "squashfs.img"

	EfiBootMount    = "/tmp/katsu.efiboot"
	EfiBootAltMount = "/tmp/katsu-efiboot"
)

const DefaultVolID = "KATSU-LIVEOS"

// Env vars honored by the CLI.
const (
	EnvSkipPhases   = "KATSU_SKIP_PHASES"
	EnvFeatureFlags = "KATSU_FEATURE_FLAGS"
	EnvLog          = "KATSU_LOG"
)

func Phases() []string {
	return []string{PhaseRoot, PhaseDracut, PhaseRootImg, PhaseCopyLive, PhaseISO, PhaseBootloader}
}
