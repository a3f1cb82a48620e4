package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/config"
	"github.com/ayoubz/gestion-salles/internal/database"
	"github.com/ayoubz/gestion-salles/internal/handler"
	"github.com/ayoubz/gestion-salles/internal/mailer"
	"github.com/ayoubz/gestion-salles/internal/queue"
	"github.com/ayoubz/gestion-salles/internal/repository"
	"github.com/ayoubz/gestion-salles/internal/router"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when Redis is unreachable

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	resets := repository.NewPasswordResetRepo(db)
	salles := repository.NewSalleRepo(db)
	reservations := repository.NewReservationRepo(db)
	bons := repository.NewBonAchatRepo(db)
	demandes := repository.NewDemandeRepo(db)

	mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)

	h := router.Handlers{
		Auth:         handler.NewAuthHandler(cfg, users, tokens, resets, mail),
		Salles:       handler.NewSalleHandler(cfg, salles),
		Reservations: handler.NewReservationHandler(reservations, salles, bons, users),
		Bons:         handler.NewBonAchatHandler(bons, reservations, users),
		Demandes:     handler.NewDemandeHandler(demandes, salles),
	}

	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, h, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
