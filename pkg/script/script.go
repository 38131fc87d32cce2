package script

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPriority orders scripts that declare none. Higher priorities run
// later among scripts with no dependency relation.
const DefaultPriority = 50

// Script is a user hook. The body comes from either File or Inline; a
// missing shebang gets "#!/bin/sh" prepended at materialization time.
type Script struct {
	ID       string   `yaml:"id,omitempty"`
	Name     string   `yaml:"name,omitempty"`
	File     string   `yaml:"file,omitempty"`
	Inline   string   `yaml:"inline,omitempty"`
	InChroot *bool    `yaml:"in-chroot,omitempty"`
	Needs    []string `yaml:"needs,omitempty"`
	Priority int      `yaml:"priority,omitempty"`
}

func (s *Script) UnmarshalYAML(value *yaml.Node) error {
	type plain Script
	var p plain
	p.Priority = DefaultPriority
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Script(p)
	return nil
}

// DisplayName is what the log calls the script.
func (s Script) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.ID != "" {
		return s.ID
	}
	return s.File
}

// Body loads the script body and guarantees a shebang.
func (s Script) Body() (string, error) {
	body := s.Inline
	if s.File != "" {
		data, err := os.ReadFile(s.File)
		if err != nil {
			return "", fmt.Errorf("reading script %s: %w", s.File, err)
		}
		body = string(data)
	}
	if body == "" {
		return "", fmt.Errorf("script %s has neither a file nor an inline body", s.DisplayName())
	}
	if !strings.HasPrefix(body, "#!") {
		body = "#!/bin/sh\n" + body
	}
	return body, nil
}
