package platform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"genport/internal/vfs"
)

// ExitCommandNotFound is the conventional shell exit code for an unknown
// command.
const ExitCommandNotFound = 127

// ExecResult is the outcome of a shell command. A non-zero exit code is a
// result, not an error; errors are reserved for transport failures.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Shell runs commands.
type Shell interface {
	Exec(ctx context.Context, command string) (ExecResult, error)
}

// restrictedShell is the sandbox shell. It implements a fixed builtin set
// and reports everything else as command-not-found.
type restrictedShell struct {
	fs  vfs.FileSystem
	env map[string]string
}

// NewRestrictedShell creates the sandbox shell. cd operates on the given
// filesystem's working directory.
func NewRestrictedShell(fs vfs.FileSystem, env map[string]string) Shell {
	if env == nil {
		env = map[string]string{}
	}
	return &restrictedShell{fs: fs, env: env}
}

func (s *restrictedShell) Exec(ctx context.Context, command string) (ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return ExecResult{}, err
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ExecResult{}, nil
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "echo":
		return ExecResult{Stdout: strings.Join(args, " ") + "\n"}, nil

	case "pwd":
		return ExecResult{Stdout: s.fs.Cwd() + "\n"}, nil

	case "cd":
		target := "/"
		if len(args) > 0 {
			target = args[0]
		}
		if err := s.fs.Chdir(target); err != nil {
			return ExecResult{
				Stderr:   fmt.Sprintf("cd: %s: %v\n", target, err),
				ExitCode: 1,
			}, nil
		}
		return ExecResult{}, nil

	case "env":
		keys := make([]string, 0, len(s.env))
		for k := range s.env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%s\n", k, s.env[k])
		}
		return ExecResult{Stdout: b.String()}, nil

	case "exit":
		code := 0
		if len(args) > 0 {
			fmt.Sscanf(args[0], "%d", &code)
		}
		return ExecResult{ExitCode: code}, nil

	default:
		return ExecResult{
			Stderr:   fmt.Sprintf("%s: command not found\n", verb),
			ExitCode: ExitCommandNotFound,
		}, nil
	}
}
