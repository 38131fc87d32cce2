package layout

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("fstab rendering", func() {
	It("emits a tab-separated line with pass 2 for regular filesystems", func() {
		line := fstabLine(MountEntry{Mountpoint: "/", Filesystem: "ext4", FsType: "ext4"}, "abcd-1234")
		Expect(line).To(Equal("UUID=abcd-1234\t/\text4\tdefaults\t0\t2\n"))
	})
	It("uses pass 0 for the ESP", func() {
		line := fstabLine(MountEntry{Mountpoint: "/boot/efi", Filesystem: "efi", FsType: "vfat"}, "ABCD-EF01")
		Expect(line).To(Equal("UUID=ABCD-EF01\t/boot/efi\tvfat\tdefaults\t0\t0\n"))
	})
	It("keeps pass 2 for a plain vfat partition", func() {
		line := fstabLine(MountEntry{Mountpoint: "/data", Filesystem: "vfat", FsType: "vfat"}, "ABCD-EF02")
		Expect(line).To(Equal("UUID=ABCD-EF02\t/data\tvfat\tdefaults\t0\t2\n"))
	})
	It("carries the subvolume in the options column", func() {
		line := fstabLine(MountEntry{Mountpoint: "/home", Filesystem: "btrfs", FsType: "btrfs", Subvolume: "home"}, "abcd")
		Expect(line).To(ContainSubstring("\tdefaults,subvol=home\t"))
	})
	It("ends every line with a newline", func() {
		line := fstabLine(MountEntry{Mountpoint: "/", Filesystem: "ext4", FsType: "ext4"}, "u")
		Expect(strings.HasSuffix(line, "\n")).To(BeTrue())
	})
})

var _ = Describe("mount option rendering", func() {
	It("orders options and renders key=value pairs", func() {
		ops := map[string]string{"subvol": "home", "defaults": ""}
		Expect(mntOpsString(ops)).To(Equal("defaults,subvol=home"))
	})
	It("renders a bare option without an equals sign", func() {
		Expect(mntOpsString(map[string]string{"defaults": ""})).To(Equal("defaults"))
	})
})

var _ = Describe("parted filesystem names", func() {
	It("maps efi to fat32 and everything else to ext4", func() {
		Expect(partedFsName("efi")).To(Equal("fat32"))
		Expect(partedFsName("ext4")).To(Equal("ext4"))
		Expect(partedFsName("btrfs")).To(Equal("ext4"))
	})
})
