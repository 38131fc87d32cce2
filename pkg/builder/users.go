package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyralabs/katsu/internal/utils"
	"github.com/fyralabs/katsu/pkg/manifest"
)

// applyUsers creates the manifest's users inside the chroot with useradd and
// seeds their authorized_keys.
func applyUsers(chroot string, users []manifest.User) error {
	for _, user := range users {
		args := []string{"-R", chroot, "useradd"}
		if user.WantsHome() {
			args = append(args, "-m")
		} else {
			args = append(args, "-M")
		}
		if user.Password != "" {
			args = append(args, "-p", user.Password)
		}
		if len(user.Groups) > 0 {
			args = append(args, "-G", strings.Join(user.Groups, ","))
		}
		if user.Shell != "" {
			args = append(args, "-s", user.Shell)
		}
		if user.UID != nil {
			args = append(args, "-u", fmt.Sprint(*user.UID))
		}
		if user.GID != nil {
			args = append(args, "-g", fmt.Sprint(*user.GID))
		}
		args = append(args, user.Username)

		utils.Log.Info().Str("user", user.Username).Msg("Creating user")
		if _, err := utils.RunCapture("unshare", args...); err != nil {
			return fmt.Errorf("creating user %s: %w", user.Username, err)
		}

		if len(user.SSHKeys) > 0 {
			if err := writeSSHKeys(chroot, user); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSSHKeys(chroot string, user manifest.User) error {
	sshDir := filepath.Join(chroot, "home", user.Username, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return err
	}
	keys := strings.Join(user.SSHKeys, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(keys), 0600); err != nil {
		return err
	}
	owner := fmt.Sprintf("%s:%s", user.Username, user.Username)
	if _, err := utils.RunCapture("unshare", "-R", chroot, "chown", "-R", owner,
		filepath.Join("/home", user.Username, ".ssh")); err != nil {
		return fmt.Errorf("chowning ssh keys of %s: %w", user.Username, err)
	}
	return nil
}
