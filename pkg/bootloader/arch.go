package bootloader

import (
	"fmt"

	"github.com/fyralabs/katsu/internal/constants"
)

// archInfo carries the per-architecture naming the EFI and GRUB worlds use.
type archInfo struct {
	Short           string // efi file suffix, e.g. shimx64.efi
	ShortUpper      string // fallback loader name, e.g. BOOTX64.efi
	Legacy          string // secondary loader name
	GrubPlatform    string // grub2-mkimage -d platform directory
	GrubImageFormat string // grub2-mkimage -O format
	ExtraModules    []string
}

var archTable = map[string]archInfo{
	"x86_64": {
		Short:           "x64",
		ShortUpper:      "X64",
		Legacy:          "IA32",
		GrubPlatform:    "i386-pc",
		GrubImageFormat: "i386-pc-eltorito",
		ExtraModules:    []string{"biosdisk"},
	},
	"aarch64": {
		Short:           "aa64",
		ShortUpper:      "AA64",
		Legacy:          "ARM",
		GrubPlatform:    "arm64-efi",
		GrubImageFormat: "arm64-efi",
		ExtraModules:    []string{"efi_gop"},
	},
}

func lookupArch(arch string) (archInfo, error) {
	info, ok := archTable[arch]
	if !ok {
		return archInfo{}, fmt.Errorf("%w: %s", constants.ErrUnsupportedArch, arch)
	}
	return info, nil
}
