// Package logx wraps zerolog behind a small Field/Logger API so services can
// keep a live logger across runtime config reloads.
package logx
