// Package daemon serves the Slack webhook and the build record API, and runs
// the scheduled scans of open pull requests. A type-safe client for the API
// lives in pkg/daemon/client.
package daemon
