package manifest_test

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/manifest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeManifest(dir, content string) string {
	path := filepath.Join(dir, "manifest.yaml")
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}

var _ = Describe("manifest loading", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "katsu-manifest-")
		Expect(err).ToNot(HaveOccurred())
	})
	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("loads a minimal ISO manifest and applies defaults", func() {
		path := writeManifest(tmpDir, `
output: iso
dnf:
  releasever: "42"
  packages: ["@core", "kernel"]
`)
		m, err := manifest.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Output).To(Equal(manifest.OutputISO))
		Expect(m.Bootloader).To(Equal(manifest.BootloaderGrub))
		Expect(m.VolumeID()).To(Equal(constants.DefaultVolID))
		Expect(m.OutputFile()).To(Equal("out.iso"))
	})

	It("honors the declared volume id and out-file", func() {
		path := writeManifest(tmpDir, `
output: iso
out-file: custom.iso
iso:
  volume-id: DEMO
dnf:
  releasever: "42"
  packages: ["kernel"]
`)
		m, err := manifest.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.VolumeID()).To(Equal("DEMO"))
		Expect(m.OutputFile()).To(Equal("custom.iso"))
	})

	It("accepts the disk-image alias for the disk output kind", func() {
		path := writeManifest(tmpDir, `
output: disk-image
dnf:
  releasever: "42"
  packages: ["kernel"]
disk:
  size: 8GiB
  partitions:
    - filesystem: efi
      mountpoint: /boot/efi
      size: 512MiB
    - filesystem: ext4
      mountpoint: /
      type: root
`)
		m, err := manifest.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Output).To(Equal(manifest.OutputDisk))
		Expect(m.OutputFile()).To(Equal("out.img"))
	})

	It("rejects a manifest without an output kind", func() {
		path := writeManifest(tmpDir, `
dnf:
  releasever: "42"
  packages: ["kernel"]
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects a manifest without a root builder", func() {
		path := writeManifest(tmpDir, `
output: iso
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects both root builders at once", func() {
		path := writeManifest(tmpDir, `
output: iso
dnf:
  releasever: "42"
bootc:
  image: quay.io/example/os:latest
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects dnf without a releasever", func() {
		path := writeManifest(tmpDir, `
output: iso
dnf:
  packages: ["kernel"]
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects bootc without an image", func() {
		path := writeManifest(tmpDir, `
output: iso
bootc:
  embed-image: true
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects disk output without a disk layout", func() {
		path := writeManifest(tmpDir, `
output: disk
dnf:
  releasever: "42"
  packages: ["kernel"]
`)
		_, err := manifest.Load(path)
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})

	It("rejects unknown bootloaders", func() {
		path := writeManifest(tmpDir, `
output: iso
bootloader: uboot
dnf:
  releasever: "42"
`)
		_, err := manifest.Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("parses scripts and users", func() {
		path := writeManifest(tmpDir, `
output: iso
dnf:
  releasever: "42"
  packages: ["kernel"]
scripts:
  pre:
    - id: prep
      inline: "echo prep"
  post:
    - id: brand
      inline: "echo brand"
      priority: 10
users:
  - username: demo
    groups: ["wheel"]
    ssh-keys: ["ssh-ed25519 AAAA demo@host"]
`)
		m, err := manifest.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Scripts.Pre).To(HaveLen(1))
		Expect(m.Scripts.Post[0].Priority).To(Equal(10))
		Expect(m.Users[0].WantsHome()).To(BeTrue())
	})
})

var _ = Describe("enum parsing", func() {
	It("parses bootloader aliases", func() {
		for alias, want := range map[string]manifest.Bootloader{
			"grub":         manifest.BootloaderGrub,
			"grub2":        manifest.BootloaderGrub,
			"grub-bios":    manifest.BootloaderGrubBios,
			"limine":       manifest.BootloaderLimine,
			"systemd-boot": manifest.BootloaderSystemdBoot,
			"sdboot":       manifest.BootloaderSystemdBoot,
			"refind":       manifest.BootloaderREFInd,
		} {
			got, err := manifest.ParseBootloader(alias)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})
	It("parses output kinds", func() {
		for alias, want := range map[string]manifest.OutputKind{
			"iso":        manifest.OutputISO,
			"disk":       manifest.OutputDisk,
			"disk-image": manifest.OutputDisk,
			"device":     manifest.OutputDevice,
			"folder":     manifest.OutputFolder,
		} {
			got, err := manifest.ParseOutputKind(alias)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})
})

var _ = Describe("distro name", func() {
	It("prefers the manifest's distro", func() {
		m := &manifest.Manifest{Distro: "Ultramarine Linux"}
		Expect(m.DistroName("/nonexistent")).To(Equal("Ultramarine Linux"))
	})
	It("falls back to the chroot's os-release", func() {
		tmpDir, err := os.MkdirTemp("", "katsu-osrelease-")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(tmpDir)
		Expect(os.MkdirAll(filepath.Join(tmpDir, "etc"), 0755)).To(Succeed())
		osRelease := "NAME=\"Fedora Linux\"\nPRETTY_NAME=\"Fedora Linux 42\"\n"
		Expect(os.WriteFile(filepath.Join(tmpDir, "etc", "os-release"), []byte(osRelease), 0644)).To(Succeed())

		m := &manifest.Manifest{}
		Expect(m.DistroName(tmpDir)).To(Equal("Fedora Linux 42"))
	})
	It("defaults to Linux when nothing is known", func() {
		m := &manifest.Manifest{}
		Expect(m.DistroName("/nonexistent")).To(Equal("Linux"))
	})
})
