package image

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fyralabs/katsu/internal/constants"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("installed kernel version", func() {
	var chroot string

	BeforeEach(func() {
		var err error
		chroot, err = os.MkdirTemp("", "katsu-dracut-")
		Expect(err).ToNot(HaveOccurred())
		Expect(os.MkdirAll(filepath.Join(chroot, "boot"), 0755)).To(Succeed())
	})
	AfterEach(func() {
		os.RemoveAll(chroot)
	})

	It("reads the version out of the initramfs filename", func() {
		name := "initramfs-6.8.5-301.fc40.x86_64.img"
		Expect(os.WriteFile(filepath.Join(chroot, "boot", name), []byte(""), 0644)).To(Succeed())
		ver, err := installedKernelVersion(chroot)
		Expect(err).ToNot(HaveOccurred())
		Expect(ver).To(Equal("6.8.5-301.fc40.x86_64"))
	})

	It("skips rescue initramfs files", func() {
		rescue := "initramfs-0-rescue-deadbeef.img"
		real := "initramfs-6.8.5-301.fc40.x86_64.img"
		Expect(os.WriteFile(filepath.Join(chroot, "boot", rescue), []byte(""), 0644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(chroot, "boot", real), []byte(""), 0644)).To(Succeed())
		ver, err := installedKernelVersion(chroot)
		Expect(err).ToNot(HaveOccurred())
		Expect(ver).To(Equal("6.8.5-301.fc40.x86_64"))
	})

	It("reports an empty boot directory as a missing resource", func() {
		_, err := installedKernelVersion(chroot)
		Expect(errors.Is(err, constants.ErrResourceMissing)).To(BeTrue())
	})
})
