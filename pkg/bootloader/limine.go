package bootloader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	"golang.org/x/crypto/blake2b"
)

// limineShareDir is where the limine package installs its boot binaries.
const limineShareDir = "/usr/share/limine"

var limineBins = []string{"limine-uefi-cd.bin", "limine-bios-cd.bin", "limine-bios.sys"}

func (s *Stager) stageLimine(chroot, isoTree string, m *manifest.Manifest) error {
	bootDir := filepath.Join(isoTree, "boot")
	if err := utils.CreateIfNotExists(bootDir); err != nil {
		return err
	}
	for _, bin := range limineBins {
		if err := utils.CopyFile(filepath.Join(limineShareDir, bin), filepath.Join(bootDir, bin)); err != nil {
			return err
		}
	}

	if err := stageKernel(chroot, isoTree, true); err != nil {
		return err
	}

	cfg, err := renderTemplate(limineTemplate, s.templateData(chroot, m))
	if err != nil {
		return err
	}
	cfgPath := filepath.Join(bootDir, "limine.cfg")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		return err
	}

	// Enrolling the config digest makes limine refuse to boot a tampered
	// config. Both the UEFI and the BIOS stage need it.
	digest := enrollDigest(cfg)
	for _, bin := range []string{"limine-uefi-cd.bin", "limine-bios.sys"} {
		if _, err := utils.RunCapture("limine", "enroll-config", filepath.Join(bootDir, bin), digest); err != nil {
			return err
		}
	}
	return nil
}

// enrollDigest computes the BLAKE2B-512 checksum limine enroll-config
// expects, the same 128-hex-char form b2sum prints.
func enrollDigest(cfg string) string {
	return fmt.Sprintf("%x", blake2b.Sum512([]byte(cfg)))
}
