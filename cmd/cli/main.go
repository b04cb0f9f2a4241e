package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abhishek00112233/LMS-Backend/internal/client"
	"github.com/abhishek00112233/LMS-Backend/internal/client/cli"
	"github.com/abhishek00112233/LMS-Backend/internal/logger"
)

func main() {
	defaultServer := os.Getenv("LMS_SERVER_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:5000"
	}
	defaultSession := os.Getenv("LMS_SESSION_FILE")
	if defaultSession == "" {
		path, err := client.DefaultSessionPath()
		if err != nil {
			logger.Log.Fatalf("cli: %v", err)
		}
		defaultSession = path
	}

	serverURL := flag.String("server", defaultServer, "LMS server base URL")
	sessionPath := flag.String("session", defaultSession, "path of the cached login")
	timeout := flag.Duration("timeout", 15*time.Second, "request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(
		client.NewAPI(*serverURL, *timeout),
		client.NewSessionStore(*sessionPath),
		os.Stdin,
		os.Stdout,
		cli.StdinPassword(),
	)
	if err != nil {
		logger.Log.Fatalf("cli: %v", err)
	}

	app.Run(ctx)
}
