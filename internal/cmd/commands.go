package cmd

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
	"github.com/fyralabs/katsu/pkg/pipeline"
	"github.com/spectrocloud-labs/herd"
	"github.com/urfave/cli/v2"
)

var Commands = []*cli.Command{
	{
		Name:      "build",
		Usage:     "build an image from a manifest",
		UsageText: "katsu build [options] <manifest>",
		Description: `
Builds the artifact described by the manifest: a live ISO, a raw disk image,
or a plain root tree.
`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output",
				Usage: "override the manifest's output kind (iso, disk-image, device, folder)",
			},
			&cli.StringFlag{
				Name:    "skip-phases",
				Usage:   "comma-separated phases to skip",
				EnvVars: []string{constants.EnvSkipPhases},
			},
			&cli.StringFlag{
				Name:  "arch",
				Usage: "target architecture, defaults to the host's",
			},
			&cli.StringFlag{
				Name:  "output-file",
				Usage: "override the artifact path",
			},
			&cli.StringFlag{
				Name:    "feature-flags",
				Usage:   "comma-separated experimental features to enable",
				EnvVars: []string{constants.EnvFeatureFlags},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "debug logging",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "print the phase graph and exit",
			},
		},
		Action: func(c *cli.Context) error {
			utils.SetLogger(c.Bool("verbose"))

			if c.NArg() != 1 {
				return fmt.Errorf("%w: exactly one manifest path is required", constants.ErrConfigInvalid)
			}
			m, err := manifest.Load(c.Args().First())
			if err != nil {
				return err
			}
			if err := applyOverrides(m, c); err != nil {
				return err
			}
			// Overrides can change the output kind, so the invariants
			// need a second pass.
			if err := m.Validate(); err != nil {
				return err
			}

			skip, err := parsePhases(c.String("skip-phases"))
			if err != nil {
				return err
			}
			if flags := splitCSV(c.String("feature-flags")); len(flags) > 0 {
				utils.Log.Debug().Strs("flags", flags).Msg("Feature flags")
			}

			arch := c.String("arch")
			if arch == "" {
				arch = hostArch()
			}

			g := herd.DAG()
			s := pipeline.New(m, arch, constants.WorkDir, skip)
			if err := s.Register(g); err != nil {
				return err
			}

			utils.Log.Info().Msg(s.WriteDAG(g))
			if c.Bool("dry-run") {
				return nil
			}

			if err := utils.CreateIfNotExists(constants.WorkDir); err != nil {
				return err
			}
			err = g.Run(context.Background())
			utils.Log.Info().Msg(s.WriteDAG(g))
			return err
		},
	},
}

func applyOverrides(m *manifest.Manifest, c *cli.Context) error {
	if out := c.String("output"); out != "" {
		kind, err := manifest.ParseOutputKind(out)
		if err != nil {
			return fmt.Errorf("%w: %v", constants.ErrConfigInvalid, err)
		}
		m.Output = kind
	}
	if file := c.String("output-file"); file != "" {
		m.OutFile = file
	}
	return nil
}

func parsePhases(csv string) ([]string, error) {
	phases := splitCSV(csv)
	known := constants.Phases()
	for _, phase := range phases {
		valid := false
		for _, k := range known {
			if phase == k {
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("%w: unknown phase %q", constants.ErrConfigInvalid, phase)
		}
	}
	return phases, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	}
	return runtime.GOARCH
}
