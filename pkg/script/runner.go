package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fyralabs/katsu/internal/constants"
	"github.com/fyralabs/katsu/internal/utils"
)

// Runner executes a batch of scripts exactly once each, dependency-first.
// Ties between independent scripts break on declared order, then priority
// (higher runs later).
type Runner struct {
	Chroot   string
	Workdir  string // host-side scratch dir for non-chroot scripts
	InChroot bool   // batch default, overridable per script

	byID       map[string]*Script
	done       map[*Script]bool
	inProgress map[*Script]bool
}

// RunAll resolves and runs the whole batch.
func (r *Runner) RunAll(scripts []Script) error {
	r.byID = map[string]*Script{}
	r.done = map[*Script]bool{}
	r.inProgress = map[*Script]bool{}

	ordered := make([]*Script, len(scripts))
	for i := range scripts {
		s := &scripts[i]
		if s.ID == "" {
			s.ID = fmt.Sprintf("script-%d", i)
		}
		if _, dup := r.byID[s.ID]; dup {
			return fmt.Errorf("%w: duplicate script id %q", constants.ErrConfigInvalid, s.ID)
		}
		r.byID[s.ID] = s
		ordered[i] = s
	}
	// Stable, so equal priorities keep the manifest's declared order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, s := range ordered {
		if err := r.resolve(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) resolve(s *Script) error {
	if r.done[s] {
		return nil
	}
	if r.inProgress[s] {
		return fmt.Errorf("%w: dependency cycle through script %q", constants.ErrConfigInvalid, s.ID)
	}
	r.inProgress[s] = true
	defer delete(r.inProgress, s)

	for _, need := range s.Needs {
		dep, ok := r.byID[need]
		if !ok {
			return fmt.Errorf("%w: script %q needs unknown script %q", constants.ErrConfigInvalid, s.ID, need)
		}
		if err := r.resolve(dep); err != nil {
			return err
		}
	}

	if err := r.execute(s); err != nil {
		return err
	}
	r.done[s] = true
	return nil
}

func (r *Runner) execute(s *Script) error {
	inChroot := r.InChroot
	if s.InChroot != nil {
		inChroot = *s.InChroot
	}

	body, err := s.Body()
	if err != nil {
		return err
	}

	name := fmt.Sprintf("script-%s", s.ID)
	var path string
	if inChroot {
		path = filepath.Join(r.Chroot, "tmp", name)
	} else {
		path = filepath.Join(r.Workdir, name)
	}
	if err := utils.CreateIfNotExists(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0755); err != nil {
		return err
	}
	defer os.Remove(path)

	utils.Log.Info().Str("script", s.DisplayName()).Bool("in-chroot", inChroot).Msg("Running script")
	if inChroot {
		err = utils.Run("unshare", "-R", r.Chroot, filepath.Join("/tmp", name))
	} else {
		err = utils.RunWithEnv([]string{fmt.Sprintf("CHROOT=%s", r.Chroot)}, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", constants.ErrScriptFailure, s.DisplayName(), err)
	}
	return nil
}
