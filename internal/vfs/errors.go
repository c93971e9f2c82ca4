package vfs

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by both backends. Callers match with errors.Is.
var (
	ErrNotFound        = errors.New("no such file or directory")
	ErrNotADirectory   = errors.New("not a directory")
	ErrNotAFile        = errors.New("not a file")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrExists          = errors.New("file exists")
)

func notFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, path)
}

func notADirectory(path string) error {
	return fmt.Errorf("%w: %s", ErrNotADirectory, path)
}

func notAFile(path string) error {
	return fmt.Errorf("%w: %s", ErrNotAFile, path)
}

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func alreadyExists(path string) error {
	return fmt.Errorf("%w: %s", ErrExists, path)
}
