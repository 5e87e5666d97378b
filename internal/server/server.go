package server

import (
	"context"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Ravenshaw3/recollect/internal/config"
	"github.com/Ravenshaw3/recollect/internal/offload"
	"github.com/Ravenshaw3/recollect/internal/remote"
	"github.com/Ravenshaw3/recollect/internal/session"
	"github.com/Ravenshaw3/recollect/internal/store"
	"github.com/Ravenshaw3/recollect/internal/stream"
	"github.com/Ravenshaw3/recollect/internal/tracking"
	"github.com/Ravenshaw3/recollect/internal/upload"
)

type Server struct {
	App     *fiber.App
	Cfg     config.Config
	Store   *store.Store
	Stream  *stream.Hub
	Session *session.Session
	Feed    *tracking.FeedSource
	Sampler *tracking.Sampler
	Remote  *remote.Client
	Queue   *upload.Queue
	Offload *offload.Manager
}

func NewServer(cfg config.Config, st *store.Store) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub()
	sess := session.New(st, hub)
	feed := tracking.NewFeedSource()
	remoteClient := remote.NewClient(remoteBaseURL(st, cfg), 0)
	off := offload.NewManager(st, hub)
	queue := upload.NewQueue(st, remoteClient, hub)
	queue.OnComplete(func(res upload.Result) {
		if !res.Job.OffloadAfter {
			return
		}
		if _, err := off.Offload(context.Background(), res.Job.AdventureID); err != nil {
			log.Printf("offload after upload of adventure %d: %v", res.Job.AdventureID, err)
		}
	})

	sampler := tracking.NewSampler(feed, func(pos tracking.Position) {
		if _, err := sess.AddWaypoint(context.Background(), pos.Lat, pos.Lng, nil, nil); err != nil {
			log.Printf("record waypoint: %v", err)
		}
	})
	sampler.SetThrottle(cfg.SampleMinInterval(), float64(cfg.SampleMinDistanceM))

	s := &Server{
		App:     app,
		Cfg:     cfg,
		Store:   st,
		Stream:  hub,
		Session: sess,
		Feed:    feed,
		Sampler: sampler,
		Remote:  remoteClient,
		Queue:   queue,
		Offload: off,
	}

	registerRoutes(s)
	return s
}

// Close stops the upload worker. The store is closed by the caller that
// opened it.
func (s *Server) Close() {
	s.Queue.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	registerAdventureRoutes(s.App.Group("/adventures"), s)
	registerSettingsRoutes(s.App.Group("/settings"), s)
	session.RegisterRoutes(s.App.Group("/session"), s.Session)
	tracking.RegisterRoutes(s.App.Group("/tracking"), s.Sampler, s.Feed)
	upload.RegisterRoutes(s.App.Group("/uploads"), s.Queue)
	offload.RegisterRoutes(s.App.Group("/offload"), s.Offload)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func registerAdventureRoutes(r fiber.Router, s *Server) {
	r.Get("/", func(c *fiber.Ctx) error {
		advs, err := s.Store.Adventures(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(advs)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure id")
		}
		adv, ok, err := s.Store.AdventureByID(c.Context(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "adventure not found")
		}
		return c.JSON(adv)
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid adventure id")
		}
		if err := s.Session.Delete(c.Context(), id); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerSettingsRoutes(r fiber.Router, s *Server) {
	r.Get("/remote", func(c *fiber.Ctx) error {
		profile, url := remoteSetting(c.Context(), s.Store, s.Cfg)
		return c.JSON(fiber.Map{
			"profile":  profile,
			"url":      url,
			"base_url": config.ResolveBaseURL(profile, url),
		})
	})

	r.Put("/remote", func(c *fiber.Ctx) error {
		var body struct {
			Profile string `json:"profile"`
			URL     string `json:"url"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, ok := config.RemoteProfiles[body.Profile]; !ok && body.Profile != "custom" {
			return fiber.NewError(fiber.StatusBadRequest, "unknown remote profile")
		}
		if body.Profile == "custom" && body.URL == "" {
			return fiber.NewError(fiber.StatusBadRequest, "custom profile requires a url")
		}
		if err := s.Store.PutSetting(c.Context(), store.KeyRemoteProfile, body.Profile); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if err := s.Store.PutSetting(c.Context(), store.KeyRemoteURL, body.URL); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		base := config.ResolveBaseURL(body.Profile, body.URL)
		s.Remote.SetBaseURL(base)
		return c.JSON(fiber.Map{
			"profile":  body.Profile,
			"url":      body.URL,
			"base_url": base,
		})
	})
}

// remoteSetting returns the persisted endpoint choice, falling back to the
// environment configuration on a fresh database.
func remoteSetting(ctx context.Context, st *store.Store, cfg config.Config) (profile, url string) {
	profile, _ = st.Setting(ctx, store.KeyRemoteProfile)
	url, _ = st.Setting(ctx, store.KeyRemoteURL)
	if profile == "" {
		profile = cfg.RemoteProfile
	}
	if url == "" {
		url = cfg.RemoteURL
	}
	return profile, url
}

func remoteBaseURL(st *store.Store, cfg config.Config) string {
	profile, url := remoteSetting(context.Background(), st, cfg)
	return config.ResolveBaseURL(profile, url)
}
