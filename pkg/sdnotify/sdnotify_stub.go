//go:build !linux

package sdnotify

import "context"

func Ready()    {}
func Stopping() {}

func Watchdog(ctx context.Context) {}
