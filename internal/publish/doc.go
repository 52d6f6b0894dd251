// Package publish fans status changes out to Redis so dashboards and other
// tools can follow the monitor without talking to the daemon.
//
// Every change is published as JSON on the configured channel and the latest
// event per pipeline is kept under buildwatch:pipeline:<id>. Publishing is
// best effort: failures are logged and never block alert delivery.
package publish
