package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mickamy/crudmodel/example/model"
	"github.com/mickamy/crudmodel/example/repo"
	"github.com/mickamy/crudmodel/orm"
)

var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	created_at DATETIME NOT NULL
)`,
		`CREATE TABLE posts (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	body TEXT NOT NULL,
	user_id BIGINT NULL
)`,
	},
	"postgres": {
		`CREATE TABLE users (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE TABLE posts (
	id BIGSERIAL PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	body TEXT NOT NULL,
	user_id BIGINT NULL
)`,
	},
	"sqlite": {
		`CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	created_at DATETIME NOT NULL
)`,
		`CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	user_id INTEGER NULL
)`,
	},
}

var connections = map[string]orm.ConnConfig{
	"mysql": {
		Driver: "mysql", Host: "127.0.0.1", Port: 3306,
		Database: "crudmodel_test", User: "root", Password: "root",
	},
	"postgres": {
		Driver: "postgres", Host: "127.0.0.1", Port: 5432,
		Database: "crudmodel_test", User: "postgres", Password: "postgres",
		Params: map[string]string{"sslmode": "disable"},
	},
	"sqlite": {Driver: "sqlite"},
}

func main() {
	dialect := flag.String("dialect", "sqlite", "database dialect (mysql, postgres or sqlite)")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	if _, ok := connections[*dialect]; !ok {
		log.Fatal().Str("dialect", *dialect).Msg("Unknown dialect (use mysql, postgres or sqlite)")
	}
	h, err := orm.NewConnectionHandler(ctx, connections, orm.WithDefaultKey(*dialect), orm.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer func() { _ = h.Close() }()

	m := orm.NewModel(h, nil)
	defer func() { _ = m.Close() }()

	// CREATE TABLE
	fmt.Println("--- CREATE TABLE ---")
	for _, table := range []string{"posts", "users"} {
		if _, err := m.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			log.Fatal().Err(err).Msg("drop table")
		}
	}
	for _, ddl := range schemas[*dialect] {
		if _, err := m.Exec(ctx, ddl); err != nil {
			log.Fatal().Err(err).Msg("create table")
		}
	}
	fmt.Println("Tables 'users' and 'posts' created.")

	users := repo.NewUserRepository(m)
	posts := repo.NewPostRepository(m)

	// INSERT
	fmt.Println("\n--- INSERT ---")
	now := time.Now().UTC().Truncate(time.Second)
	alice := &model.User{Name: "Alice", Email: "alice@example.com", CreatedAt: now}
	if err := users.Create(ctx, alice); err != nil {
		log.Fatal().Err(err).Msg("create Alice")
	}
	fmt.Printf("Created: %+v\n", *alice)

	bob := &model.User{Name: "Bob", Email: "bob@example.com", CreatedAt: now}
	if err := users.Create(ctx, bob); err != nil {
		log.Fatal().Err(err).Msg("create Bob")
	}
	fmt.Printf("Created: %+v\n", *bob)

	for _, title := range []string{"Hello", "Second thoughts"} {
		if err := posts.Create(ctx, &model.Post{Title: title, Body: "...", User: alice}); err != nil {
			log.Fatal().Err(err).Msg("create post")
		}
	}

	// SELECT (all)
	fmt.Println("\n--- SELECT ALL ---")
	all, err := users.FindAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("find all")
	}
	for _, u := range all {
		fmt.Printf("  %+v\n", *u)
	}

	// SELECT with foreign keys
	fmt.Println("\n--- SELECT POSTS ---")
	alicePosts, err := posts.ByUser(ctx, alice)
	if err != nil {
		log.Fatal().Err(err).Msg("posts by user")
	}
	for _, p := range alicePosts {
		fmt.Printf("  #%d %q by %s\n", p.ID, p.Title, p.User.Name)
	}

	// UPDATE
	fmt.Println("\n--- UPDATE ---")
	alice.Name = "Alice Updated"
	alice.Email = "alice.updated@example.com"
	if err := users.Update(ctx, alice); err != nil {
		log.Fatal().Err(err).Msg("update Alice")
	}
	updated, err := users.FindByID(ctx, alice.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("find after update")
	}
	fmt.Printf("Updated: %+v\n", *updated)

	// DELETE
	fmt.Println("\n--- DELETE ---")
	n, err := posts.DeleteByUser(ctx, alice)
	if err != nil {
		log.Fatal().Err(err).Msg("delete posts")
	}
	fmt.Printf("Deleted %d posts of user ID=%d\n", n, alice.ID)
	if err := users.Delete(ctx, bob); err != nil {
		log.Fatal().Err(err).Msg("delete Bob")
	}
	fmt.Printf("Deleted user with ID=%d\n", bob.ID)

	remaining, err := users.FindAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("find all after delete")
	}
	fmt.Printf("Remaining users: %d\n", len(remaining))
	for _, u := range remaining {
		fmt.Printf("  %+v\n", *u)
	}
}
