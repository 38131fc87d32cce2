package builder_test

import (
	"errors"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/pkg/builder"
	"github.com/fyralabs/katsu/pkg/manifest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("root builder selection", func() {
	It("selects the dnf builder", func() {
		m := &manifest.Manifest{Dnf: &manifest.DnfConfig{ReleaseVer: "42"}}
		b, err := builder.New(m, "katsu-work", "x86_64")
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(BeAssignableToTypeOf(&builder.DnfRootBuilder{}))
	})
	It("selects the oci builder", func() {
		m := &manifest.Manifest{Bootc: &manifest.BootcConfig{Image: "quay.io/example/os"}}
		b, err := builder.New(m, "katsu-work", "x86_64")
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(BeAssignableToTypeOf(&builder.OciRootBuilder{}))
	})
	It("fails when nothing is configured", func() {
		_, err := builder.New(&manifest.Manifest{}, "katsu-work", "x86_64")
		Expect(errors.Is(err, constants.ErrConfigInvalid)).To(BeTrue())
	})
})
