package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cfpbot/internal/app"
)

func main() {
	os.Exit(run())
}

// run keeps os.Exit out of the deferred-cleanup path.
func run() int {
	var (
		cfgPath    string
		exportPath string
		once       bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json/yaml")
	flag.StringVar(&exportPath, "export-json", "", "write the crawl result to this path and exit")
	flag.BoolVar(&once, "once", false, "run a single crawl and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Options{ExportPath: exportPath})
	if err != nil {
		fmt.Println("fatal:", err)
		return 1
	}
	defer a.Close()

	if once || exportPath != "" {
		res, err := a.RunOnce(ctx, "cli")
		if err != nil {
			fmt.Println("crawl failed:", err)
			return 1
		}
		fmt.Printf("crawl ok: %d entries (%d new), changed=%v\n", res.Entries, res.NewEntries, res.Changed)
		return 0
	}

	// SIGUSR1 triggers an out-of-band crawl, mirroring the workflow's
	// manual dispatch.
	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	go func() {
		for range usr1 {
			a.RunNow("manual")
		}
	}()

	if err := a.Run(ctx); err != nil {
		fmt.Println("fatal:", err)
		return 1
	}
	return 0
}
