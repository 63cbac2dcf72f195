package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"planningpoker/internal/config"
	"planningpoker/internal/logger"
	"planningpoker/internal/model"
	"planningpoker/internal/repository"
	"planningpoker/internal/service"
)

type seedUser struct {
	name  string
	email string
	role  model.Role
}

var seedUsers = []seedUser{
	{"Priya Manager", "pm@example.com", model.RoleFacilitator},
	{"Ada Lovelace", "ada@example.com", model.RoleParticipant},
	{"Linus Torvalds", "linus@example.com", model.RoleParticipant},
	{"Grace Hopper", "grace@example.com", model.RoleParticipant},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "password123"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.Mongo.Database)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Fatal("failed to create indexes", zap.Error(err))
	}
	users := repository.NewUserRepo(db)
	sessions := repository.NewSessionRepo(db)
	stories := repository.NewStoryRepo(db)

	hash, err := service.HashPassword(password)
	if err != nil {
		log.Fatal("failed to hash password", zap.Error(err))
	}

	var facilitator *model.User
	var developerIDs []string
	for _, su := range seedUsers {
		user, err := users.GetByEmail(ctx, su.email)
		if err != nil {
			log.Fatal("failed to look up user", zap.String("email", su.email), zap.Error(err))
		}
		if user == nil {
			user = &model.User{
				ID:           uuid.NewString(),
				Name:         su.name,
				Email:        su.email,
				PasswordHash: hash,
				Role:         su.role,
				CreatedAt:    time.Now(),
			}
			if err := users.Create(ctx, user); err != nil {
				log.Fatal("failed to create user", zap.String("email", su.email), zap.Error(err))
			}
			log.Info("created user", zap.String("email", su.email), zap.String("role", string(su.role)))
		}
		if su.role == model.RoleFacilitator {
			facilitator = user
		} else {
			developerIDs = append(developerIDs, user.ID)
		}
	}

	sessionSvc := service.NewSessionService(sessions, log)
	session, err := sessionSvc.Create(ctx, facilitator.Identity(), service.CreateSessionInput{
		Name:         "Sprint planning demo",
		Description:  "Seeded session",
		Participants: developerIDs,
	})
	if err != nil {
		log.Fatal("failed to create session", zap.Error(err))
	}

	storySvc := service.NewStoryService(stories, repository.NewVoteRepo(db), sessions, log)
	for _, title := range []string{"User can reset password", "Export report as CSV", "Dark mode"} {
		if _, err := storySvc.Create(ctx, facilitator.Identity(), service.CreateStoryInput{
			SessionID:        session.ID,
			Title:            title,
			TimeLimitMinutes: 3,
		}); err != nil {
			log.Fatal("failed to create story", zap.String("title", title), zap.Error(err))
		}
	}

	fmt.Printf("Seeded session %q (%s) for %s; password for all users: %s\n",
		session.Name, session.ID, facilitator.Email, password)
}
