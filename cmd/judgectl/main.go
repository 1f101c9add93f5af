package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cryptoj/internal/cli/httpclient"
	"cryptoj/internal/cli/repl"
)

func main() {
	baseURL := flag.String("base", "http://127.0.0.1:8090", "Judge service base URL")
	timeout := flag.Duration("timeout", 0, "HTTP timeout (e.g. 10s)")
	flag.Parse()

	client := httpclient.New(strings.TrimRight(*baseURL, "/"), *timeout)

	session, err := repl.New(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session failed: %v\n", err)
		return
	}
	session.Run(context.Background())
}
