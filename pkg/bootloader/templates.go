package bootloader

import (
	"strings"
	"text/template"
)

// templateData feeds every bootloader config template.
type templateData struct {
	VolumeID  string
	Distro    string
	Vmlinuz   string
	Initramfs string
	Cmdline   string
}

var grubTemplate = template.Must(template.New("grub.cfg").Parse(`set default="0"
set timeout=5

insmod all_video
insmod gfxterm
insmod png

menuentry "Start {{.Distro}}" --class gnu-linux --class os {
	linux {{.Vmlinuz}} root=live:LABEL={{.VolumeID}} rd.live.image enforcing=0 {{.Cmdline}}
	initrd {{.Initramfs}}
}

menuentry "Start {{.Distro}} (basic graphics)" --class gnu-linux --class os {
	linux {{.Vmlinuz}} root=live:LABEL={{.VolumeID}} rd.live.image enforcing=0 nomodeset {{.Cmdline}}
	initrd {{.Initramfs}}
}
`))

var limineTemplate = template.Must(template.New("limine.cfg").Parse(`TIMEOUT=5

:{{.Distro}}
	PROTOCOL=linux
	KERNEL_PATH=boot://{{.Vmlinuz}}
	MODULE_PATH=boot://{{.Initramfs}}
	KERNEL_CMDLINE=root=live:LABEL={{.VolumeID}} rd.live.image enforcing=0 {{.Cmdline}}
`))

var refindTemplate = template.Must(template.New("refind.conf").Parse(`timeout 5

menuentry "{{.Distro}}" {
	loader {{.Vmlinuz}}
	initrd {{.Initramfs}}
	options "root=live:LABEL={{.VolumeID}} rd.live.image enforcing=0 {{.Cmdline}}"
}
`))

func renderTemplate(tmpl *template.Template, data templateData) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
