package cmd

import (
	"log/slog"

	"github.com/flowcheck/flowcheck/internal/repo"
)

// app is the wired repository handle every repository-bound command
// operates on.
type app struct {
	*repo.Handle
}

// newApp opens the repository containing the working directory.
func newApp() (*app, error) {
	h, err := repo.Open(".", slog.Default())
	if err != nil {
		return nil, err
	}
	return &app{Handle: h}, nil
}
