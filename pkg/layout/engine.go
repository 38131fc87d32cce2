package layout

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

const mib = 1024 * 1024

const fstabHeader = `# This file is generated by katsu. Do not edit unless you know what you are doing.
#
# <file system>	<mount point>	<type>	<options>	<dump>	<pass>
`

// MountEntry is one thing to mount: a partition or a btrfs subvolume of one.
type MountEntry struct {
	PartitionIndex int // 1-based, matches the on-disk index
	Mountpoint     string
	Filesystem     string // as declared in the layout, "efi" included
	FsType         string // normalized for mount(8) and fstab
	Subvolume      string // empty for plain partitions
}

// PartitionDevice derives the device node of partition idx on base. Devices
// whose kernel names end in a digit (mmcblk, nvme, loop) take a "p"
// separator, everything else concatenates the index directly.
func PartitionDevice(base string, idx int) string {
	for _, prefix := range []string{"/dev/mmcblk", "/dev/nvme", "/dev/loop"} {
		if strings.HasPrefix(base, prefix) {
			return fmt.Sprintf("%sp%d", base, idx)
		}
	}
	return fmt.Sprintf("%s%d", base, idx)
}

func mountDepth(mountpoint string) int {
	trimmed := strings.TrimSuffix(mountpoint, "/")
	return strings.Count(trimmed, "/")
}

// MountOrder returns all mountable entries sorted for mounting: "/" first,
// then ascending slash depth, ties broken alphabetically. Unmounting walks
// it in reverse.
func (l *Layout) MountOrder() []MountEntry {
	entries := []MountEntry{}
	for i, part := range l.Partitions {
		if part.Mountpoint != "" {
			entries = append(entries, MountEntry{
				PartitionIndex: i + 1,
				Mountpoint:     part.Mountpoint,
				Filesystem:     part.Filesystem,
				FsType:         part.FstabType(),
			})
		}
		for _, sub := range part.Subvolumes {
			entries = append(entries, MountEntry{
				PartitionIndex: i + 1,
				Mountpoint:     sub.Mountpoint,
				Filesystem:     part.Filesystem,
				FsType:         part.FstabType(),
				Subvolume:      sub.Name,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Mountpoint, entries[j].Mountpoint
		if a == "/" {
			return b != "/"
		}
		if b == "/" {
			return false
		}
		da, db := mountDepth(a), mountDepth(b)
		if da != db {
			return da < db
		}
		return a < b
	})
	return entries
}

func partedFsName(filesystem string) string {
	if filesystem == "efi" {
		return "fat32"
	}
	return "ext4"
}

// Apply writes a fresh GPT label to device and creates, types, and formats
// every partition in declaration order. The first partition starts at 1MiB,
// each next one at the previous end; an unsized partition runs to 100%.
func (l *Layout) Apply(device, arch string) error {
	if err := l.Validate(); err != nil {
		return err
	}

	// Resolve all type GUIDs up front so an unsupported arch fails before
	// the disk is touched.
	guids := make([]string, len(l.Partitions))
	for i, part := range l.Partitions {
		if part.Type.IsZero() && part.Filesystem == "efi" {
			guids[i] = GuidEsp
			continue
		}
		guid, err := part.Type.Resolve(arch)
		if err != nil {
			return err
		}
		guids[i] = guid
	}

	utils.Log.Info().Str("device", device).Int("partitions", len(l.Partitions)).Msg("Applying partition layout")
	if _, err := utils.RunCapture("parted", "-s", device, "mklabel", "gpt"); err != nil {
		return err
	}

	start := uint64(mib)
	for i, part := range l.Partitions {
		index := i + 1
		end := "100%"
		if part.Size != nil {
			end = fmt.Sprintf("%dB", start+uint64(*part.Size)-1)
		}
		args := []string{"-s", device, "mkpart", "primary", partedFsName(part.Filesystem),
			fmt.Sprintf("%dB", start), end}
		if _, err := utils.RunCapture("parted", args...); err != nil {
			return err
		}
		if part.Filesystem == "efi" {
			if _, err := utils.RunCapture("parted", "-s", device, "set", fmt.Sprint(index), "esp", "on"); err != nil {
				return err
			}
		}
		if part.Label != "" {
			if _, err := utils.RunCapture("parted", "-s", device, "name", fmt.Sprint(index), part.Label); err != nil {
				return err
			}
		}
		if _, err := utils.RunCapture("parted", "-s", device, "type", fmt.Sprint(index), guids[i]); err != nil {
			return err
		}
		if err := formatPartition(PartitionDevice(device, index), part); err != nil {
			return err
		}
		if part.Size != nil {
			start += uint64(*part.Size)
		}
	}
	return nil
}

func formatPartition(devnode string, part Partition) error {
	utils.Log.Debug().Str("device", devnode).Str("filesystem", part.Filesystem).Msg("Formatting partition")
	var err error
	if part.Filesystem == "efi" {
		_, err = utils.RunCapture("mkfs.fat", "-F32", devnode)
	} else {
		_, err = utils.RunCapture("mkfs."+part.Filesystem, devnode)
	}
	if err != nil {
		return err
	}
	if part.Filesystem == "btrfs" && len(part.Subvolumes) > 0 {
		return createSubvolumes(devnode, part.Subvolumes)
	}
	return nil
}

func createSubvolumes(devnode string, subvolumes []Subvolume) error {
	tmp, err := os.MkdirTemp("", "katsu-btrfs-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := mount.All([]mount.Mount{{Type: "btrfs", Source: devnode}}, tmp); err != nil {
		return err
	}
	defer func() {
		if err := unix.Unmount(tmp, 0); err != nil {
			utils.Log.Err(err).Str("what", tmp).Msg("Unmounting btrfs top level")
		}
	}()

	for _, sub := range subvolumes {
		if _, err := utils.RunCapture("btrfs", "subvolume", "create", filepath.Join(tmp, sub.Name)); err != nil {
			return err
		}
	}
	return nil
}

// MountTo mounts every entry of the layout under chroot in mount order.
func (l *Layout) MountTo(device, chroot string) error {
	for _, entry := range l.MountOrder() {
		devnode := PartitionDevice(device, entry.PartitionIndex)
		target := filepath.Join(chroot, entry.Mountpoint)
		if err := utils.CreateIfNotExists(target); err != nil {
			return err
		}
		if mounted, _ := mountinfo.Mounted(target); mounted {
			utils.Log.Debug().Str("where", target).Msg("Already mounted, skipping")
			continue
		}
		opts := []string{}
		if entry.Subvolume != "" {
			opts = append(opts, fmt.Sprintf("subvol=%s", entry.Subvolume))
		}
		utils.Log.Debug().Str("what", devnode).Str("where", target).Strs("options", opts).Msg("Mounting partition")
		if err := mount.All([]mount.Mount{{Type: entry.FsType, Source: devnode, Options: opts}}, target); err != nil {
			return fmt.Errorf("mounting %s at %s: %w", devnode, target, err)
		}
	}
	return nil
}

// UnmountFrom unmounts the layout from chroot in reverse mount order, making
// it the exact inverse of MountTo.
func (l *Layout) UnmountFrom(device, chroot string) error {
	order := l.MountOrder()
	for i := len(order) - 1; i >= 0; i-- {
		target := filepath.Join(chroot, order[i].Mountpoint)
		if mounted, _ := mountinfo.Mounted(target); !mounted {
			continue
		}
		utils.Log.Debug().Str("where", target).Msg("Unmounting partition")
		if err := unix.Unmount(target, 0); err != nil {
			return fmt.Errorf("unmounting %s: %w", target, err)
		}
	}
	return nil
}

// Fstab renders the fstab for the mounted layout. Each entry resolves its
// backing device through findmnt and its UUID through blkid.
func (l *Layout) Fstab(chroot string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fstabHeader)
	for _, entry := range l.MountOrder() {
		target := filepath.Join(chroot, entry.Mountpoint)
		source, err := utils.RunCapture("findmnt", "-n", "-o", "SOURCE", target)
		if err != nil {
			return "", fmt.Errorf("resolving backing device of %s: %w", target, err)
		}
		device := string(bytes.TrimSpace(source))
		// Strip the btrfs subvolume suffix findmnt appends.
		if idx := strings.Index(device, "["); idx > 0 {
			device = device[:idx]
		}
		uuidOut, err := utils.RunCapture("blkid", "-s", "UUID", "-o", "value", device)
		if err != nil {
			return "", fmt.Errorf("resolving UUID of %s: %w", device, err)
		}
		sb.WriteString(fstabLine(entry, string(bytes.TrimSpace(uuidOut))))
	}
	return sb.String(), nil
}

func fstabLine(entry MountEntry, uuid string) string {
	m := fstab.Mount{
		Spec:    fmt.Sprintf("UUID=%s", uuid),
		File:    entry.Mountpoint,
		VfsType: entry.FsType,
		MntOps:  map[string]string{"defaults": ""},
		Freq:    0,
		PassNo:  2,
	}
	if entry.Subvolume != "" {
		m.MntOps["subvol"] = entry.Subvolume
	}
	// The ESP is the only partition fsck must leave alone.
	if entry.Filesystem == "efi" {
		m.PassNo = 0
	}
	return fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d\n", m.Spec, m.File, m.VfsType, mntOpsString(m.MntOps), m.Freq, m.PassNo)
}

// mntOpsString renders a Mount's option map in sorted order so the file
// comes out the same on every run.
func mntOpsString(ops map[string]string) string {
	keys := make([]string, 0, len(ops))
	for key := range ops {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if value := ops[key]; value != "" {
			parts = append(parts, key+"="+value)
		} else {
			parts = append(parts, key)
		}
	}
	return strings.Join(parts, ",")
}
