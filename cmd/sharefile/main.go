// Package main shares a single resource to a destination picked on the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/accelf/driveshare/content/billyfs"
	"github.com/accelf/driveshare/content/storage"
	"github.com/accelf/driveshare/log/logkeys"
	"github.com/accelf/driveshare/picker"
	"github.com/accelf/driveshare/share"
	"github.com/accelf/driveshare/view"
	"github.com/accelf/driveshare/workflow"

	"github.com/joho/godotenv"
	"github.com/micromdm/nanolib/envflag"
	"github.com/micromdm/nanolib/log/stdlogfmt"
)

// overridden by -ldflags -X
var version = "unknown"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	var (
		flDebug     = flag.Bool("debug", false, "log debug messages")
		flVersion   = flag.Bool("version", false, "print version and exit")
		flType      = flag.String("type", "", "media type of the shared content")
		flStream    = flag.String("stream", "", "URI of the shared content")
		flDest      = flag.String("dest", "", "destination URI (prompted for if empty)")
		flRoots     = flag.String("roots", "", "comma-separated container URIs to pick destinations from")
		flStorage   = flag.String("storage", "file", "name of content storage backend")
		flDSN       = flag.String("storage-dsn", "", "data source name (e.g. connection string or path)")
		flAuthority = flag.String("authority", "", "authority of content:// URIs")
		flFileRoot  = flag.String("file-root", "", "enable file:// URIs below this directory")
		flS3        = flag.Bool("s3", false, "enable s3:// URIs")
		flS3Region  = flag.String("s3-region", "", "AWS region override")
		flS3URL     = flag.String("s3-endpoint", "", "S3 endpoint URL (for S3-compatible servers)")
		flS3Path    = flag.Bool("s3-path-style", false, "use path-style S3 addressing")
		flDelay     = flag.Duration("finish-delay", workflow.DefaultFinishDelay, "how long a completed copy is shown before exiting")
	)
	envflag.Parse("DRIVESHARE_", []string{"version", "type", "stream", "dest"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))

	req, err := share.FromIntent(&share.Intent{Type: *flType, Stream: *flStream})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, store, err := storage.New(ctx, storage.Config{
		Storage:     *flStorage,
		DSN:         *flDSN,
		Authority:   *flAuthority,
		FileRoot:    *flFileRoot,
		S3:          *flS3,
		S3Region:    *flS3Region,
		S3Endpoint:  *flS3URL,
		S3PathStyle: *flS3Path,
	})
	if err != nil {
		logger.Info(logkeys.Message, "configuring storage", logkeys.Error, err)
		os.Exit(1)
	}

	render := func(s workflow.Snapshot) {
		if err := view.Render(os.Stdout, s); err != nil {
			logger.Info(logkeys.Message, "rendering", logkeys.Error, err)
		}
	}

	w, err := workflow.Start(ctx, req, resolver,
		workflow.WithLogger(logger),
		workflow.WithFinishDelay(*flDelay),
		workflow.WithObserver(render),
	)
	if err != nil {
		logger.Info(logkeys.Message, "starting workflow", logkeys.Error, err)
		os.Exit(1)
	}
	defer w.Close()
	render(w.Snapshot())

	var (
		p picker.Picker = picker.Static(*flDest)
		c confirmer
	)
	if *flDest == "" {
		roots := []string{store.URI("")}
		if *flFileRoot != "" {
			roots = append(roots, billyfs.URI("/"))
		}
		if *flRoots != "" {
			roots = strings.Split(*flRoots, ",")
		}
		term := picker.NewTerminal(os.Stdin, os.Stdout, resolver, roots, picker.WithLogger(logger))
		p, c = term, term
	}

	if code := run(ctx, w, p, c, os.Stderr); code != 0 {
		w.Close()
		os.Exit(code)
	}
}

type confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// run drives w to completion and returns the exit code.
// After a cancelled selection or a failed copy the destination selection
// is offered again if c is not nil. Without c a failed copy exits 1.
func run(ctx context.Context, w *workflow.Workflow, p picker.Picker, c confirmer, errOut io.Writer) int {
	for {
		if err := w.RequestDestination(ctx, p); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		snap, err := w.Wait(ctx)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}

		var code int
		switch snap.State {
		case workflow.Finished:
			return 0
		case workflow.Cancelled:
			code = 0
		case workflow.Failed:
			code = 1
		default:
			fmt.Fprintf(errOut, "unexpected state: %s\n", snap.State)
			return 1
		}
		if c == nil {
			return code
		}
		again, err := c.Confirm(ctx, view.RetryLabel(snap)+"? [y/N] ")
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		if !again {
			return code
		}
	}
}
