// Package containerizer starts and inspects workload containers through a
// docker-compatible command line.
//
// bootctl never creates containers. It expects them to exist already (created by
// compose, quadlets or `docker create`) and only issues `start` and `inspect`.
// Health comes from the image HEALTHCHECK when present; otherwise an optional
// per-unit health command is run inside the container with `exec`.
package containerizer
