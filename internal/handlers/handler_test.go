// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL or Valkey are unavailable.
package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"proposepress/internal/assets"
	"proposepress/internal/cache"
	"proposepress/internal/database"
	"proposepress/internal/engine"
	"proposepress/internal/lifecycle"
	"proposepress/internal/meta"
	"proposepress/internal/middleware"
	"proposepress/internal/models"
	"proposepress/internal/proposal"
	"proposepress/internal/render"
	"proposepress/internal/session"
	"proposepress/internal/sitetime"
	"proposepress/internal/store"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "proposepress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "proposepress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := database.Connect(context.Background(), dsn)
	if err != nil {
		t.Skipf("skipping: DB not reachable: %v", err)
	}
	if _, err := database.Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testValkeyClient returns a Redis client for handler tests on DB 15.
func testValkeyClient(t *testing.T) *redis.Client {
	t.Helper()

	host := envOr("VALKEY_HOST", "localhost")
	port := envOr("VALKEY_PORT", "6379")
	password := os.Getenv("VALKEY_PASSWORD")

	client := redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: password,
		DB:       15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("skipping: Valkey not reachable: %v", err)
	}

	t.Cleanup(func() {
		// Session and page cache keys share the application prefix.
		keys, _ := client.Keys(ctx, cache.KeyPrefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		client.Close()
	})

	return client
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB           *sql.DB
	Valkey       *redis.Client
	Renderer     *render.Renderer
	Sessions     *session.Store
	ContentStore *store.ContentStore
	MetaStore    *store.MetaStore
	UserStore    *store.UserStore
	Hooks        *lifecycle.Hooks
	Pipeline     *lifecycle.Pipeline
	Meta         *meta.Registry
	Proposals    *proposal.Plugin
	Engine       *engine.Engine
	PageCache    *cache.PageCache
	Admin        *Admin
	API          *API
	Auth         *Auth
	Public       *Public
}

// newTestEnv creates a complete test environment with all handler
// dependencies wired the way main wires them, in UTC.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	vk := testValkeyClient(t)

	renderer, err := render.New(true)
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	sessions := session.NewStore(vk, false)
	renderer.UseFlashes(sessions)
	contentStore := store.NewContentStore(db)
	metaStore := store.NewMetaStore(db)
	userStore := store.NewUserStore(db)
	statuses := models.NewStatusRegistry()
	zone := sitetime.NewZone(time.UTC)
	hooks := lifecycle.NewHooks()
	metaRegistry := meta.NewRegistry(metaStore)
	pipeline := lifecycle.NewPipeline(contentStore, hooks, statuses, zone)

	plugin := proposal.New(proposal.Config{
		DateFormat: "%Y-%m-%d",
		TimeFormat: "%H:%M",
	}, proposal.Options{}, hooks, metaRegistry, statuses, zone, proposal.NewMetrics(nil))
	plugin.Register(metaRegistry)

	eng, err := engine.New(engine.Config{DateFormat: "%Y-%m-%d", TimeFormat: "%H:%M"}, hooks, zone)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	pageCache := cache.NewPageCache(vk, time.Minute, "test")

	admin := NewAdmin(renderer, contentStore, userStore, pipeline, statuses, metaRegistry, plugin, zone,
		assets.NewManifests(), AssetConfig{ManifestPath: t.TempDir() + "/build/asset-manifest.json", StaticURL: "/static/build"}, pageCache, sessions)

	return &testEnv{
		DB:           db,
		Valkey:       vk,
		Renderer:     renderer,
		Sessions:     sessions,
		ContentStore: contentStore,
		MetaStore:    metaStore,
		UserStore:    userStore,
		Hooks:        hooks,
		Pipeline:     pipeline,
		Meta:         metaRegistry,
		Proposals:    plugin,
		Engine:       eng,
		PageCache:    pageCache,
		Admin:        admin,
		API:          NewAPI(contentStore, metaRegistry),
		Auth:         NewAuth(renderer, sessions, userStore),
		Public:       NewPublic(eng, contentStore, pageCache),
	}
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// testSession creates a session.Data for testing.
func testSession(userID uuid.UUID, email, role string, twoFADone bool) *session.Data {
	return &session.Data{
		UserID:      userID,
		Email:       email,
		DisplayName: "Test User",
		Role:        role,
		TwoFADone:   twoFADone,
	}
}

// withChiURLParam adds a chi URL parameter to a request.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withChiURLParamAndSession adds both chi URL param and session to a request.
func withChiURLParamAndSession(r *http.Request, key, value string, sess *session.Data) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.SessionKey, sess)
	return r.WithContext(ctx)
}

// testAuthorID returns a valid user ID for content creation.
func testAuthorID(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	if err := db.QueryRow("SELECT id FROM users WHERE role = 'admin' LIMIT 1").Scan(&id); err != nil {
		t.Fatalf("no admin in database, run seed first: %v", err)
	}
	return id
}

// testUser creates a throwaway user with role and removes it afterwards.
func testUser(t *testing.T, env *testEnv, role models.Role) *models.User {
	t.Helper()
	email := string(role) + "-" + uuid.New().String()[:8] + "@test.local"
	u, err := env.UserStore.Create(email, "password123", "Test "+string(role), role)
	if err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	t.Cleanup(func() {
		env.DB.Exec("DELETE FROM content WHERE author_id = $1", u.ID)
		env.DB.Exec("DELETE FROM users WHERE id = $1", u.ID)
	})
	return u
}

// sessionFor returns a completed session for u.
func sessionFor(u *models.User) *session.Data {
	return testSession(u.ID, u.Email, string(u.Role), true)
}

// cleanContent removes test content by slug.
func cleanContent(t *testing.T, db *sql.DB, slugs ...string) {
	t.Helper()
	for _, s := range slugs {
		db.Exec("DELETE FROM content WHERE slug = $1", s)
	}
}

// createTestPost inserts a draft post directly through the content store.
func createTestPost(t *testing.T, env *testEnv, authorID uuid.UUID, title, slug string) *models.Content {
	t.Helper()
	created, err := env.ContentStore.Create(&models.Content{
		Type:     models.ContentTypePost,
		Title:    title,
		Slug:     slug,
		Body:     "Test body for " + title,
		Status:   models.ContentStatusDraft,
		AuthorID: authorID,
		Date:     time.Date(2020, 6, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("createTestPost: %v", err)
	}
	t.Cleanup(func() { cleanContent(t, env.DB, slug) })
	return created
}
