// Command buildwatch is the CLI for the build status daemon: it launches and
// stops the daemon, manages watched pipelines, and renders their status.
package main
