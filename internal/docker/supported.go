// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build linux || darwin || windows
// +build linux darwin windows

package docker

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ory/dockertest/v3"
)

const (
	defaultRepository = "postgres"
	defaultTag        = "16-alpine"
)

func init() {
	StartDbInDocker = startDbInDockerSupported
}

func startDbInDockerSupported(opt ...Option) (cleanup func() error, retURL string, err error) {
	mx.Lock()
	defer mx.Unlock()

	if url := os.Getenv("DBSESSION_TESTING_PG_URL"); url != "" {
		return func() error { return nil }, url, nil
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return func() error { return nil }, "", fmt.Errorf("could not connect to docker: %w", err)
	}

	opts := GetOpts(opt...)
	repository, tag := defaultRepository, defaultTag
	if opts.WithContainerImage != "" {
		repository, tag, err = splitImage(opts.WithContainerImage)
		if err != nil {
			return func() error { return nil }, "", fmt.Errorf("error parsing reference: %w", err)
		}
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env: []string{
			"POSTGRES_PASSWORD=password",
			fmt.Sprintf("POSTGRES_DB=%s", opts.WithDatabaseName),
		},
		Cmd: []string{
			// JIT adds startup overhead without benefit for short lived test databases
			"-c", "jit=off",
		},
	})
	if err != nil {
		return func() error { return nil }, "", fmt.Errorf("could not start resource: %w", err)
	}
	url := fmt.Sprintf("postgres://postgres:password@%s/%s?sslmode=disable",
		resource.GetHostPort("5432/tcp"), opts.WithDatabaseName)

	cleanup = func() error {
		return cleanupDockerResource(pool, resource)
	}

	if err := pool.Retry(func() error {
		db, err := sql.Open("pgx", url)
		if err != nil {
			return fmt.Errorf("error opening postgres dev container: %w", err)
		}
		defer db.Close()
		return db.Ping()
	}); err != nil {
		return cleanup, "", fmt.Errorf("could not ping postgres on startup: %w", err)
	}

	return cleanup, url, nil
}

// cleanupDockerResource will clean up the dockertest resources (postgres)
func cleanupDockerResource(pool *dockertest.Pool, resource *dockertest.Resource) error {
	var err error
	for i := 0; i < 10; i++ {
		err = pool.Purge(resource)
		if err == nil {
			return nil
		}
	}
	if strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return fmt.Errorf("failed to cleanup local container: %s", err)
}

// splitImage separates an image reference into repo + tag.  A bare postgres
// repo gets the default tag.
func splitImage(image string) (string, string, error) {
	separated := strings.Split(image, ":")
	switch len(separated) {
	case 1:
		if separated[0] == defaultRepository {
			return separated[0], defaultTag, nil
		}
		return "", "", fmt.Errorf("valid reference format is repo:tag, if"+
			" no tag provided then repo must be postgres, got: %s", image)
	case 2:
		return separated[0], separated[1], nil
	default:
		return "", "", fmt.Errorf("valid reference format is repo:tag, got: %s", image)
	}
}
