package bootloader

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EFI boot tree population", func() {
	var (
		chroot  string
		isoTree string
		efiBoot string
		s       *Stager
	)

	BeforeEach(func() {
		var err error
		chroot, err = os.MkdirTemp("", "katsu-chroot-")
		Expect(err).ToNot(HaveOccurred())
		isoTree, err = os.MkdirTemp("", "katsu-isotree-")
		Expect(err).ToNot(HaveOccurred())
		efiBoot = filepath.Join(isoTree, "EFI", "BOOT")
		Expect(os.MkdirAll(efiBoot, 0755)).To(Succeed())
		s = &Stager{Arch: "x86_64"}
	})

	AfterEach(func() {
		os.RemoveAll(chroot)
		os.RemoveAll(isoTree)
	})

	It("copies shims to upper-case fallback loader names", func() {
		Expect(os.WriteFile(filepath.Join(efiBoot, "shimx64.efi"), []byte("shim"), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(efiBoot, "shim.efi"), []byte("shim32"), 0644)).To(Succeed())

		info, err := lookupArch("x86_64")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.populateEfiBoot(chroot, isoTree, "set default=0\n", info)).To(Succeed())

		Expect(filepath.Join(efiBoot, "BOOTX64.EFI")).To(BeAnExistingFile())
		Expect(filepath.Join(efiBoot, "BOOTIA32.EFI")).To(BeAnExistingFile())
	})

	It("duplicates the grub config next to the loaders", func() {
		info, err := lookupArch("x86_64")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.populateEfiBoot(chroot, isoTree, "set default=0\n", info)).To(Succeed())

		for _, name := range []string{"BOOT.conf", "grub.cfg"} {
			contents, err := os.ReadFile(filepath.Join(efiBoot, name))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(contents)).To(Equal("set default=0\n"))
		}
	})
})
