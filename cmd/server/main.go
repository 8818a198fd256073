// cmd/server/main.go
package main

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/soragane/tilescore/internal/cache"
	"github.com/soragane/tilescore/internal/handlers"
	"github.com/soragane/tilescore/internal/middleware"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv := handlers.NewAPIServer(logger)

	// Settlement history is optional: without Redis the service still runs,
	// sessions just stay purely in memory.
	if pub, err := cache.Connect(); err != nil {
		logger.WithError(err).Warn("Redis unavailable, settlement history disabled")
	} else {
		srv.Service.Recorder = pub
	}

	if ms := os.Getenv("SESSION_LOCK_TIMEOUT_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 {
			srv.Service.LockTimeout = time.Duration(v) * time.Millisecond
		}
	}

	logRequests := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/api/session/create", logRequests(http.HandlerFunc(srv.CreateSessionHandler)))
	mux.Handle("/api/session/", logRequests(http.HandlerFunc(srv.SessionHandler)))
	mux.Handle("/api/session/ws/", logRequests(http.HandlerFunc(
		handlers.SessionWSHandler(logger, srv),
	)))
	mux.Handle("/api/analyze", logRequests(http.HandlerFunc(srv.AnalyzeHandler)))
	mux.HandleFunc("/static/", srv.StaticHandler)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("Listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
