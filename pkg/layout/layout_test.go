package layout_test

import (
	"errors"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/layout"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"
)

func sizePtr(n uint64) *layout.Size {
	s := layout.Size(n)
	return &s
}

var _ = Describe("partition layout", func() {
	Context("PartitionDevice", func() {
		It("inserts a p separator for devices ending in a digit", func() {
			Expect(layout.PartitionDevice("/dev/loop0", 1)).To(Equal("/dev/loop0p1"))
			Expect(layout.PartitionDevice("/dev/nvme0n1", 2)).To(Equal("/dev/nvme0n1p2"))
			Expect(layout.PartitionDevice("/dev/mmcblk0", 3)).To(Equal("/dev/mmcblk0p3"))
		})
		It("concatenates directly for plain block devices", func() {
			Expect(layout.PartitionDevice("/dev/sda", 1)).To(Equal("/dev/sda1"))
			Expect(layout.PartitionDevice("/dev/vdb", 2)).To(Equal("/dev/vdb2"))
		})
	})

	Context("MountOrder", func() {
		It("puts / first, then orders by depth and alphabetically", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "ext4", Mountpoint: "/var"},
				{Filesystem: "efi", Mountpoint: "/boot/efi"},
				{Filesystem: "ext4", Mountpoint: "/boot"},
				{Filesystem: "ext4", Mountpoint: "/"},
			}}
			order := l.MountOrder()
			points := []string{}
			for _, entry := range order {
				points = append(points, entry.Mountpoint)
			}
			Expect(points).To(Equal([]string{"/", "/boot", "/var", "/boot/efi"}))
		})
		It("keeps the partition index of the declaration", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "efi", Mountpoint: "/boot/efi"},
				{Filesystem: "ext4", Mountpoint: "/"},
			}}
			order := l.MountOrder()
			Expect(order[0].Mountpoint).To(Equal("/"))
			Expect(order[0].PartitionIndex).To(Equal(2))
			Expect(order[1].PartitionIndex).To(Equal(1))
		})
		It("normalizes efi to vfat", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "efi", Mountpoint: "/boot/efi"},
			}}
			order := l.MountOrder()
			Expect(order[0].FsType).To(Equal("vfat"))
			Expect(order[0].Filesystem).To(Equal("efi"))
		})
		It("includes btrfs subvolumes as their own entries", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "btrfs", Mountpoint: "/", Subvolumes: []layout.Subvolume{
					{Name: "home", Mountpoint: "/home"},
					{Name: "varlog", Mountpoint: "/var/log"},
				}},
			}}
			order := l.MountOrder()
			Expect(order).To(HaveLen(3))
			Expect(order[0].Mountpoint).To(Equal("/"))
			Expect(order[1].Mountpoint).To(Equal("/home"))
			Expect(order[1].Subvolume).To(Equal("home"))
			Expect(order[2].Mountpoint).To(Equal("/var/log"))
		})
	})

	Context("Validate", func() {
		It("rejects an empty layout", func() {
			l := &layout.Layout{}
			Expect(errors.Is(l.Validate(), constants.ErrConfigInvalid)).To(BeTrue())
		})
		It("rejects an unsized partition that is not last", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "ext4", Mountpoint: "/"},
				{Filesystem: "efi", Mountpoint: "/boot/efi", Size: sizePtr(512 * 1024 * 1024)},
			}}
			Expect(errors.Is(l.Validate(), constants.ErrConfigInvalid)).To(BeTrue())
		})
		It("accepts an unsized terminator", func() {
			l := &layout.Layout{Partitions: []layout.Partition{
				{Filesystem: "efi", Mountpoint: "/boot/efi", Size: sizePtr(512 * 1024 * 1024)},
				{Filesystem: "ext4", Mountpoint: "/"},
			}}
			Expect(l.Validate()).To(Succeed())
		})
	})

	Context("GptType", func() {
		It("resolves the root pseudo-type per architecture", func() {
			root := layout.NamedGptType("root")
			guid, err := root.Resolve("x86_64")
			Expect(err).ToNot(HaveOccurred())
			Expect(guid).To(Equal(layout.GuidRootX86_64))
			guid, err = root.Resolve("aarch64")
			Expect(err).ToNot(HaveOccurred())
			Expect(guid).To(Equal(layout.GuidRootArm64))
		})
		It("rejects the root pseudo-type on unsupported architectures", func() {
			root := layout.NamedGptType("root")
			_, err := root.Resolve("riscv64")
			Expect(errors.Is(err, constants.ErrUnsupportedArch)).To(BeTrue())
		})
		It("resolves named aliases", func() {
			for name, guid := range map[string]string{
				"esp":           layout.GuidEsp,
				"xbootldr":      layout.GuidXbootldr,
				"swap":          layout.GuidSwap,
				"linux-generic": layout.GuidLinuxGeneric,
			} {
				resolved, err := layout.NamedGptType(name).Resolve("x86_64")
				Expect(err).ToNot(HaveOccurred())
				Expect(resolved).To(Equal(guid))
			}
		})
		It("accepts a raw GUID from yaml", func() {
			var t layout.GptType
			err := yaml.Unmarshal([]byte(`"0FC63DAF-8483-4772-8E79-3D69D8477DE4"`), &t)
			Expect(err).ToNot(HaveOccurred())
			guid, err := t.Resolve("riscv64")
			Expect(err).ToNot(HaveOccurred())
			Expect(guid).To(Equal(layout.GuidLinuxGeneric))
		})
		It("rejects garbage type declarations", func() {
			var t layout.GptType
			Expect(yaml.Unmarshal([]byte(`"not-a-guid"`), &t)).ToNot(Succeed())
		})
	})

	Context("yaml declarations", func() {
		It("parses sizes with human units", func() {
			var s layout.Size
			Expect(yaml.Unmarshal([]byte(`"512MiB"`), &s)).To(Succeed())
			Expect(uint64(s)).To(Equal(uint64(512 * 1024 * 1024)))
		})
		It("parses flags by name and bit index", func() {
			var flags []layout.PartitionFlag
			Expect(yaml.Unmarshal([]byte(`["grow-fs", "read-only", "no-auto", 12]`), &flags)).To(Succeed())
			Expect(flags).To(Equal([]layout.PartitionFlag{
				layout.FlagGrowFs, layout.FlagReadOnly, layout.FlagNoAuto, layout.PartitionFlag(12),
			}))
		})
		It("rejects out-of-range flag bits", func() {
			var f layout.PartitionFlag
			Expect(yaml.Unmarshal([]byte(`64`), &f)).ToNot(Succeed())
		})
		It("parses a full disk declaration", func() {
			doc := `
size: 8GiB
partitions:
  - label: EFI
    size: 512MiB
    filesystem: efi
    mountpoint: /boot/efi
  - filesystem: ext4
    mountpoint: /
    type: root
`
			var l layout.Layout
			Expect(yaml.Unmarshal([]byte(doc), &l)).To(Succeed())
			Expect(l.Validate()).To(Succeed())
			Expect(uint64(*l.Size)).To(Equal(uint64(8 * 1024 * 1024 * 1024)))
			Expect(l.Partitions).To(HaveLen(2))
			Expect(l.Partitions[0].FstabType()).To(Equal("vfat"))
			guid, err := l.Partitions[1].Type.Resolve("x86_64")
			Expect(err).ToNot(HaveOccurred())
			Expect(guid).To(Equal(layout.GuidRootX86_64))
		})
	})
})
