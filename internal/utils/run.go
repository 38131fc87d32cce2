package utils

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/fyralabs/katsu/internal/constants"
)

// ExitError is returned when an external command exits non-zero in capture
// mode. It keeps both streams so the failing phase can report them.
type ExitError struct {
	Cmd      string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Cmd, e.ExitCode, bytes.TrimSpace(e.Stderr))
}

func (e *ExitError) Unwrap() error {
	return constants.ErrExternalFailure
}

// RunCapture executes a command buffering stdout and stderr. On non-zero exit
// the returned error is an *ExitError carrying both streams.
func RunCapture(name string, args ...string) ([]byte, error) {
	Log.Debug().Str("cmd", name).Strs("args", args).Msg("Running (captured)")
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.Bytes(), &ExitError{
				Cmd:      name,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
			}
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

// Run executes a command with the child inheriting our streams.
func Run(name string, args ...string) error {
	Log.Debug().Str("cmd", name).Strs("args", args).Msg("Running")
	cmd := exec.Command(name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExitError{Cmd: name, ExitCode: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}

// RunWithEnv is Run with extra KEY=VALUE entries appended to the environment.
func RunWithEnv(env []string, name string, args ...string) error {
	Log.Debug().Str("cmd", name).Strs("args", args).Strs("env", env).Msg("Running")
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &ExitError{Cmd: name, ExitCode: exitErr.ExitCode()}
		}
		return err
	}
	return nil
}
