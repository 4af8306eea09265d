package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/adapters/web"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/app"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/core"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/db"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/flow"
	"github.com/Niicolasl/mueblesnico-whatsapp-webhook/internal/notify"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer pool.Close()

	orders := core.NewOrderService(pool)
	suppliers := core.NewSupplierService(pool)
	balance := core.NewBalanceService(orders, suppliers)

	engine := flow.NewEngine(orders, suppliers, log)
	engine.StartPurge(ctx)

	sender := notify.NewWhatsAppSender(
		os.Getenv("WHATSAPP_TOKEN"),
		os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
	)
	dispatcher := &notify.Dispatcher{
		Pool:      pool,
		Sender:    sender,
		Log:       log,
		BatchSize: 20,
		Interval:  5 * time.Second,
	}
	go dispatcher.Run(ctx)

	router := app.NewRouter(app.Deps{
		AdminPhones: splitCSV(os.Getenv("ADMIN_PHONES")),
		CountryCode: envOr("DEFAULT_COUNTRY_CODE", "57"),
		Engine:      engine,
		Orders:      orders,
		Suppliers:   suppliers,
		Balance:     balance,
		Outbox:      notify.NewOutbox(),
		DB:          pool,
		Log:         log,
	})

	handler := web.NewHandler(router, web.Config{
		VerifyToken: os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		AppSecret:   os.Getenv("META_APP_SECRET"),
	}, log)

	port := envOr("SERVER_PORT", "8080")
	srv := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("port", port).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
