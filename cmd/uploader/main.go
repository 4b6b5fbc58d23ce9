// Command uploader sends knowledge-test documents to a running server and
// reports how each one fared.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"

	"github.com/marcusgoll/cfipros-web-sub000/internal/uploadqueue"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("uploader", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", "http://localhost:8080", "server base URL")
	token := fs.String("token", os.Getenv("CFIPROS_TOKEN"), "bearer token (default $CFIPROS_TOKEN)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: uploader -server URL -token T file...")
		return 2
	}

	endpoint := strings.TrimRight(*server, "/") + "/api/v1/test-upload"
	q := uploadqueue.New(uploadqueue.NewHTTPTransport(endpoint, *token, nil))

	names := make(map[string]string)
	for _, path := range fs.Args() {
		f, err := fileFromPath(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			return 1
		}
		rec := q.AddFiles(f)[0]
		names[rec.ClientID] = path
		if rec.Status == uploadqueue.StatusErrorUpload {
			fmt.Fprintf(stderr, "%s: %s\n", path, rec.ErrorMessage)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	last := -1
	report := func(overall int) {
		if overall != last {
			last = overall
			fmt.Fprintf(stdout, "progress: %d%%\n", overall)
		}
	}
	q.OnProgress(report)
	q.UploadAllFiles(ctx)
	report(q.OverallProgress())

	failed := false
	for _, rec := range q.Records() {
		switch rec.Status {
		case uploadqueue.StatusErrorUpload:
			failed = true
			fmt.Fprintf(stdout, "FAIL %s: %s\n", names[rec.ClientID], rec.ErrorMessage)
		default:
			fmt.Fprintf(stdout, "OK   %s\n", names[rec.ClientID])
		}
	}

	if failed {
		return 1
	}
	return 0
}

// fileFromPath sniffs the content type instead of trusting the extension.
func fileFromPath(path string) (uploadqueue.File, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return uploadqueue.File{}, err
	}
	contentType, _, _ := strings.Cut(mt.String(), ";")
	return uploadqueue.FileFromPath(path, contentType)
}
