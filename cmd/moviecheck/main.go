// Package main is the entry point of the moviecheck binary. It verifies a movie
// CRUD API end to end: health, create, duplicate rejection, fetch, update,
// delete and the 404s that must follow. The first mismatch ends the process
// with exit code 1.
package main

import (
	"context"
	"fmt"
	"os"

	// Artifact backends register themselves with the storage factory.
	_ "github.com/movie-api/moviecheck/internal/storage/azure"
	_ "github.com/movie-api/moviecheck/internal/storage/gcs"
	_ "github.com/movie-api/moviecheck/internal/storage/local"
	_ "github.com/movie-api/moviecheck/internal/storage/s3"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

func main() {
	if err := newRootCmd(newApp(os.Stdout, os.Stderr)).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
