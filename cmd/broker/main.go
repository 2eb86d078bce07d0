package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"broker/internal/apiv1"
	"broker/internal/emailloop"
	"broker/internal/httpserver"
	"broker/internal/jwtissuer"
	"broker/internal/keyring"
	"broker/internal/oidcclient"
	"broker/internal/sessionstore"
	"broker/pkg/configuration"
	"broker/pkg/logger"
	"broker/pkg/trace"
)

type service interface {
	Close(ctx context.Context) error
}

func main() {
	var wg sync.WaitGroup
	ctx := context.Background()

	services := make(map[string]service)

	cfg, err := configuration.New(ctx)
	if err != nil {
		panic(err)
	}

	log, err := logger.New("broker", cfg.Log.FolderPath, cfg.Production)
	if err != nil {
		panic(err)
	}
	mainLog := log.New("main")

	tracer, err := trace.New(ctx, cfg, log, "broker")
	if err != nil {
		panic(err)
	}

	ring, err := keyring.Load(cfg.PrivateKeyFile)
	if err != nil {
		panic(err)
	}

	sessions, err := sessionstore.New(ctx, cfg, log.New("sessionstore"))
	if err != nil {
		panic(err)
	}
	services["sessionstore"] = sessionstoreCloser{sessions}

	issuer := jwtissuer.New(ring, cfg)

	oidc := oidcclient.New(cfg, sessions, issuer)
	services["oidcclient"] = oidcClientCloser{oidc}

	mailer := &emailloop.SMTPMailer{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.Sender.Address,
		FromName: cfg.Sender.Name,
	}
	email := emailloop.New(cfg, sessions, issuer, mailer, log.New("emailloop"))

	apiv1Client, err := apiv1.New(ctx, cfg, tracer, ring, oidc, email, log.New("apiv1"))
	if err != nil {
		panic(err)
	}

	httpService, err := httpserver.New(ctx, cfg, apiv1Client, tracer, log.New("httpserver"))
	if err != nil {
		panic(err)
	}
	services["httpServer"] = httpService

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpService.ListenAndServe(ctx); err != nil {
			mainLog.Error(err, "http server stopped")
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan // Blocks here until interrupted

	mainLog.Info("HALTING SIGNAL!")

	for serviceName, svc := range services {
		if err := svc.Close(ctx); err != nil {
			mainLog.Trace("serviceName", serviceName, "error", err)
		}
	}

	if err := tracer.Shutdown(ctx); err != nil {
		mainLog.Error(err, "tracer shutdown")
	}

	wg.Wait() // Block here until all workers are done

	mainLog.Info("Stopped")
}

type sessionstoreCloser struct{ store *sessionstore.Store }

func (s sessionstoreCloser) Close(ctx context.Context) error { return s.store.Close() }

type oidcClientCloser struct{ client *oidcclient.Client }

func (o oidcClientCloser) Close(ctx context.Context) error {
	o.client.Close()
	return nil
}
