// Jiutian CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/jiutian/internal/dagger"
)

// Jiutian is the main module for the Jiutian CI/CD pipeline
type Jiutian struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Jiutian CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp"]
	source *dagger.Directory,
) *Jiutian {
	return &Jiutian{
		Source: source,
	}
}

// goContainer returns an Alpine-based Go container with the Go module
// and build caches mounted and the project source at /src.
//
// It is the shared foundation for tests, builds, and linting.
func (j *Jiutian) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", j.Source)
}

// Test runs the jiutian unit tests via "go test"
func (j *Jiutian) Test(ctx context.Context) (string, error) {
	return j.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}
