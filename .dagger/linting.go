package main

import (
	"context"
	"fmt"

	"dagger/jiutian/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts returns the common GolangcilintOpts used by both CheckLint and FixLint.
// It layers golangci-lint on top of goContainer() so the Go caches are already
// in place.
func (j *Jiutian) lintOpts() dagger.GolangcilintOpts {
	base := j.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  j.Source.File(".golangci.yml"),
	}
}

// CheckLint runs golangci-lint against the jiutian source code without applying fixes.
func (j *Jiutian) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(j.Source, j.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint against the jiutian source code with --fix, applying
// automatic fixes where possible, and returns the modified source directory.
func (j *Jiutian) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(j.Source, j.lintOpts()).Lint()
}
