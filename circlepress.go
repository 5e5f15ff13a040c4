// Package circlepress is the content core of a community publishing
// platform: posts with a field-level change history, AI-assisted drafts
// from transcripts, and email digests of published posts.
//
// The App wires the store, text generator, mail transport and object
// storage behind an Echo JSON API. Every collaborator can be injected with
// an Option; Init builds the configured default for any that are not.
package circlepress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/circlepress/llm"
	"github.com/eringen/circlepress/mail"
	"github.com/eringen/circlepress/storage"
)

// App is the central circlepress application.
type App struct {
	Config   Config
	Echo     *echo.Echo
	Logger   *slog.Logger
	Store    *Store
	Cache    *PostCache
	Index    *PostIndex
	Drafts   *DraftGenerator
	Digests  *DigestComposer
	Dispatch *Dispatcher
	Objects  storage.ObjectStore

	textGen         TextGenerator
	mailer          mail.Sender
	uploadsDir      string
	loginLimiter    *RateLimiter
	generateLimiter *RateLimiter
	now             func() time.Time
	ready           bool
}

// New creates an App. Call Init (or Start, which calls it) before serving.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()
	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Logger: slog.Default(),
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init builds every collaborator that was not injected, then installs
// middleware and routes.
func (a *App) Init(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if a.Config.Server.AdminPassword == "" {
		return errors.New("circlepress: server.admin_password is required (or ADMIN_PASSWORD)")
	}
	if a.Config.Server.SessionSecret == "" {
		return errors.New("circlepress: server.session_secret is required (or SESSION_SECRET)")
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.Database.Path)
		if err != nil {
			return fmt.Errorf("circlepress: init store: %w", err)
		}
		a.Store = store
	}
	if a.textGen == nil && a.Config.LLM.APIKey != "" {
		a.textGen = llm.NewClient(llm.Config{
			APIKey:         a.Config.LLM.APIKey,
			BaseURL:        a.Config.LLM.BaseURL,
			Model:          a.Config.LLM.Model,
			Temperature:    a.Config.LLM.Temperature,
			TimeoutSeconds: a.Config.LLM.TimeoutSeconds,
		})
	}
	if a.textGen == nil {
		a.Logger.Warn("llm.api_key not set; draft generation is disabled")
	}
	if a.mailer == nil {
		sender, err := NewMailSender(a.Config.Mail, a.Logger)
		if err != nil {
			return fmt.Errorf("circlepress: init mail: %w", err)
		}
		a.mailer = sender
	}
	if a.Objects == nil {
		objects, err := a.newObjectStore(ctx)
		if err != nil {
			return fmt.Errorf("circlepress: init storage: %w", err)
		}
		a.Objects = objects
	}
	if local, ok := a.Objects.(*storage.Local); ok {
		a.uploadsDir = local.Dir()
	}

	index, err := NewPostIndex()
	if err != nil {
		return fmt.Errorf("circlepress: init search: %w", err)
	}
	if err := index.Rebuild(ctx, a.Store); err != nil {
		return fmt.Errorf("circlepress: build search index: %w", err)
	}
	a.Index = index

	a.Cache = NewPostCache(a.Store, seconds(a.Config.Server.PostCacheTTLSeconds))
	a.Drafts = NewDraftGenerator(a.textGen, a.Config.LLM.MaxTokens)
	a.Digests = NewDigestComposer(a.Store, a.Config.Site, a.Config.Digest)
	a.Dispatch = NewDispatcher(a.mailer, a.Config.Mail, a.Config.Site.Name, a.Logger)
	a.loginLimiter = NewRateLimiter(a.Config.Server.LoginAttemptsPerMinute, time.Minute)
	a.generateLimiter = NewRateLimiter(a.Config.Server.GenerateRequestsPerMinute, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	a.ready = true
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.Echo.Server.ReadTimeout = seconds(a.Config.Server.ReadTimeoutSeconds)
	a.Echo.Server.WriteTimeout = seconds(a.Config.Server.WriteTimeoutSeconds)
	a.Logger.Info("circlepress listening", "addr", a.Config.Server.Addr, "site", a.Config.Site.URL)
	if err := a.Echo.Start(a.Config.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.generateLimiter != nil {
		a.generateLimiter.Stop()
	}
	var errs []error
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

func (a *App) setupRoutes() {
	e := a.Echo
	admin := a.requireAdmin

	e.GET("/feed.xml", a.handleFeed)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/digest/latest", a.handleDigestLatest)
	if a.uploadsDir != "" {
		e.Static("/uploads", a.uploadsDir)
	}

	e.GET("/admin/session", a.handleAdminSession)
	e.POST("/admin/login", a.handleAdminLogin)
	e.POST("/admin/logout", handleAdminLogout)

	e.GET("/posts", a.handleGetPosts)
	e.POST("/posts", a.handleCreatePost, admin)
	e.PUT("/posts", a.handleUpdatePost, admin)
	e.DELETE("/posts", a.handleDeletePost, admin)
	e.GET("/posts/history", a.handlePostHistory, admin)
	e.POST("/posts/generate", a.handleGenerate, admin, a.rateLimit(a.generateLimiter))

	e.POST("/digest", a.handleDigestSend, admin)
	e.POST("/digest/preview", a.handleDigestPreview, admin)
	e.POST("/digest/preview-selected", a.handleDigestPreviewSelected, admin)

	e.POST("/images", a.handleImageUpload, admin)
}

// NewMailSender builds the transport named by cfg.Provider.
func NewMailSender(cfg MailConfig, logger *slog.Logger) (mail.Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "resend":
		return mail.NewResend(mail.ResendConfig{
			APIKey:  cfg.APIKey,
			From:    cfg.From,
			Timeout: seconds(cfg.TimeoutSeconds),
		})
	case "", "log":
		return mail.NewLog(logger, cfg.From), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

func (a *App) newObjectStore(ctx context.Context) (storage.ObjectStore, error) {
	sc := a.Config.Storage
	if strings.EqualFold(sc.Backend, "s3") {
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:       sc.Bucket,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			AccessKey:    sc.AccessKey,
			SecretKey:    sc.SecretKey,
			Prefix:       sc.Prefix,
			PublicURL:    sc.PublicURL,
			UsePathStyle: sc.UsePathStyle,
		})
	}
	publicURL := sc.PublicURL
	if publicURL == "" {
		publicURL = BuildURL(a.Config.Site.URL, "uploads")
	}
	return storage.NewLocal(sc.Dir, publicURL)
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
