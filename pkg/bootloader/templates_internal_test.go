package bootloader

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("bootloader config templates", func() {
	data := templateData{
		VolumeID:  "DEMO",
		Distro:    "Fedora Linux 42",
		Vmlinuz:   "/boot/vmlinuz",
		Initramfs: "/boot/initramfs.img",
		Cmdline:   "quiet",
	}

	It("renders the grub config with the live root label", func() {
		cfg, err := renderTemplate(grubTemplate, data)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg).To(ContainSubstring("root=live:LABEL=DEMO"))
		Expect(cfg).To(ContainSubstring(`menuentry "Start Fedora Linux 42"`))
		Expect(cfg).To(ContainSubstring("initrd /boot/initramfs.img"))
		Expect(cfg).To(ContainSubstring("quiet"))
	})

	It("renders the limine config", func() {
		cfg, err := renderTemplate(limineTemplate, data)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg).To(ContainSubstring("KERNEL_PATH=boot:///boot/vmlinuz"))
		Expect(cfg).To(ContainSubstring("root=live:LABEL=DEMO"))
	})

	It("renders the refind config", func() {
		cfg, err := renderTemplate(refindTemplate, data)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg).To(ContainSubstring("loader /boot/vmlinuz"))
		Expect(cfg).To(ContainSubstring("root=live:LABEL=DEMO"))
	})
})

var _ = Describe("arch table", func() {
	It("maps x86_64 to the BIOS-capable toolchain names", func() {
		info, err := lookupArch("x86_64")
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Short).To(Equal("x64"))
		Expect(info.ShortUpper).To(Equal("X64"))
		Expect(info.Legacy).To(Equal("IA32"))
		Expect(info.GrubPlatform).To(Equal("i386-pc"))
		Expect(info.GrubImageFormat).To(Equal("i386-pc-eltorito"))
		Expect(info.ExtraModules).To(Equal([]string{"biosdisk"}))
	})
	It("maps aarch64 to the EFI-only toolchain names", func() {
		info, err := lookupArch("aarch64")
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Short).To(Equal("aa64"))
		Expect(info.GrubPlatform).To(Equal("arm64-efi"))
		Expect(info.ExtraModules).To(Equal([]string{"efi_gop"}))
	})
	It("rejects anything else", func() {
		_, err := lookupArch("riscv64")
		Expect(err).To(HaveOccurred())
	})
})
