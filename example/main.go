package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kyugo/preify"
	cfg "github.com/go-kyugo/preify/config"
	"github.com/go-kyugo/preify/logger"
	"github.com/go-kyugo/preify/middleware"
	"github.com/go-kyugo/preify/response"
	"github.com/go-kyugo/preify/router"
	"github.com/go-kyugo/preify/server"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type users map[string]user

// find looks a user up on a goroutine, the way a database call would.
func (u users) find(id string) *preify.Future {
	return preify.Go(func() (any, error) {
		time.Sleep(10 * time.Millisecond)
		if found, ok := u[id]; ok {
			return found, nil
		}
		return nil, &response.StatusError{Status: http.StatusNotFound, Code: "USER_NOT_FOUND", Err: fmt.Errorf("user %s not found", id)}
	})
}

func greet(u user, salutation string) map[string]string {
	return map[string]string{"message": salutation + ", " + u.Name + "!"}
}

func param(name string) preify.Handler {
	return func(req *preify.Request, reply preify.Reply) {
		reply(router.Param(req.R, name))
	}
}

func main() {
	path := flag.String("config", "example/config.json", "path to config.json")
	flag.Parse()

	if err := cfg.LoadConfig(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store := users{"1": {ID: "1", Name: "Sam"}, "2": {ID: "2", Name: "Alex"}}
	pre := router.WithConfig(cfg.ConfigVar.Pre)

	r := router.New()
	r.Group("/users/{id}").
		Pre("id", param("id"), pre).
		Pre("user", preify.MustBuild(store.find, "id"), pre).
		Pre("salutation", preify.MustBuild(func() string { return "Hello" }), pre).
		Get("/greeting", preify.MustBuild(greet, "user", "salutation"))

	srv, err := server.New(server.Options{
		Config:  &cfg.ConfigVar,
		Handler: r.Handler(),
		DefaultMiddlewares: []func(http.Handler) http.Handler{
			middleware.CORS(cfg.ConfigVar.Server.Cors),
			middleware.Logger,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		if err != nil {
			logger.Error("Server.Failed", logger.Fields{"error": err.Error()})
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Server.Shutdown", logger.Fields{"error": err.Error()})
		}
	}
}
