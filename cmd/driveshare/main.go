// Package main starts a driveshare server.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/accelf/driveshare/content/storage"
	"github.com/accelf/driveshare/engine"
	enginehttp "github.com/accelf/driveshare/engine/http"
	httpshare "github.com/accelf/driveshare/http"
	"github.com/accelf/driveshare/log/logkeys"
	"github.com/accelf/driveshare/workflow"

	"github.com/alexedwards/flow"
	"github.com/joho/godotenv"
	"github.com/micromdm/nanolib/envflag"
	nanohttp "github.com/micromdm/nanolib/http"
	"github.com/micromdm/nanolib/http/trace"
	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/stdlogfmt"
)

// overridden by -ldflags -X
var version = "unknown"

const (
	apiUsername = "driveshare"
	apiRealm    = "driveshare"
)

func main() {
	// environment from .env is visible to envflag below
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	var (
		flDebug     = flag.Bool("debug", false, "log debug messages")
		flListen    = flag.String("listen", ":9004", "HTTP listen address")
		flVersion   = flag.Bool("version", false, "print version and exit")
		flDump      = flag.Bool("dump", false, "dump API requests")
		flAPIKey    = flag.String("api", "", "API key for API endpoints")
		flStorage   = flag.String("storage", "file", "name of content storage backend")
		flDSN       = flag.String("storage-dsn", "", "data source name (e.g. connection string or path)")
		flAuthority = flag.String("authority", "", "authority of content:// URIs")
		flFileRoot  = flag.String("file-root", "", "enable file:// URIs below this directory")
		flS3        = flag.Bool("s3", false, "enable s3:// URIs")
		flS3Region  = flag.String("s3-region", "", "AWS region override")
		flS3URL     = flag.String("s3-endpoint", "", "S3 endpoint URL (for S3-compatible servers)")
		flS3Path    = flag.Bool("s3-path-style", false, "use path-style S3 addressing")
		flDelay     = flag.Duration("finish-delay", workflow.DefaultFinishDelay, "how long a completed copy is shown before the session ends")
	)
	envflag.Parse("DRIVESHARE_", []string{"version"})

	if *flVersion {
		fmt.Println(version)
		return
	}

	logger := stdlogfmt.New(stdlogfmt.WithDebugFlag(*flDebug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, _, err := storage.New(ctx, storage.Config{
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
	logSchemes(logger, resolver.Schemes())

	e := engine.New(
		resolver,
		engine.WithLogger(logger.With("service", "engine")),
		engine.WithFinishDelay(*flDelay),
	)

	mux := flow.New()

	mux.Handle("/version", nanohttp.NewJSONVersionHandler(version))

	mux.Group(func(mux *flow.Mux) {
		if *flAPIKey != "" {
			mux.Use(func(h http.Handler) http.Handler {
				return nanohttp.NewSimpleBasicAuthHandler(h, apiUsername, *flAPIKey, apiRealm)
			})
		}
		if *flDump {
			mux.Use(func(h http.Handler) http.Handler {
				return httpshare.DumpHandler(h, os.Stdout)
			})
		}

		enginehttp.HandleAPIv1("/v1", mux, logger, e)
	})

	srv := &http.Server{
		Addr:    *flListen,
		Handler: trace.NewTraceLoggingHandler(mux, logger.With("handler", "log"), newTraceID),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Info(logkeys.Message, "shutting down server", logkeys.Error, err)
		}
	}()

	logger.Info(logkeys.Message, "starting server", "listen", *flListen)
	err = srv.ListenAndServe()
	logs := []interface{}{logkeys.Message, "server shutdown"}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logs = append(logs, logkeys.Error, err)
	}
	logger.Info(logs...)

	// cancels copies still in progress
	if err = e.Close(); err != nil {
		logger.Info(logkeys.Message, "closing engine", logkeys.Error, err)
	}
}

// logSchemes logs the URI schemes content can be shared from and to.
func logSchemes(logger log.Logger, schemes []string) {
	for _, scheme := range schemes {
		logger.Debug(logkeys.Message, "resolver configured", logkeys.Scheme, scheme)
	}
}

// untracedID is the trace ID used if no random ID can be generated.
const untracedID = "untraced"

// newTraceID generates a new HTTP trace ID for context logging.
func newTraceID(_ *http.Request) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return untracedID
	}
	return fmt.Sprintf("%x", b)
}
