// Package connectors groups the adapters that make repositories available
// to the pipeline: the local filesystem, the git command line and the
// GitHub REST API.
package connectors
