// Package feed fetches pipeline status snapshots from CI servers.
//
// A Fetcher turns a server descriptor into a status.Status. Client dispatches
// on the descriptor kind to the CCTray XML connector or the GitHub Actions REST
// connector. Every failure is returned as a *FetchError carrying a coarse
// Kind so callers can surface it without inspecting transport details. No
// connector retries; the caller's schedule decides when to try again.
package feed
