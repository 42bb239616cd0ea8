package server

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/Pusher91/fieldbutton/internal/domain"
	"github.com/Pusher91/fieldbutton/internal/fieldtype"
	"github.com/Pusher91/fieldbutton/internal/metrics"
	"github.com/Pusher91/fieldbutton/internal/registrar"
	"github.com/Pusher91/fieldbutton/internal/server/api"
	"github.com/Pusher91/fieldbutton/internal/store"
)

// DefaultVersion is reported by /health.
const DefaultVersion = "1.1.0"

//go:embed web/*.html
var embedded embed.FS

var pages = template.Must(template.ParseFS(embedded, "web/*.html"))

type Options struct {
	Client        registrar.FieldTypeAdder
	Endpoints     []string
	DefaultDomain string
	Field         domain.FieldDefinition

	// Cache is nil when deduplication is disabled.
	Cache domain.RegistrationCache
	// Repo is nil when no data dir is configured.
	Repo    *store.RegistrationRepo
	Metrics *metrics.Metrics

	// ExposeActivity mounts /events and /api/registrations*. They list
	// portal domains, so they are off unless configured.
	ExposeActivity bool

	PublicURL   string
	Version     string
	Development bool

	// RateMax requests per RateWindow across all clients; 0 disables.
	RateMax    int
	RateWindow time.Duration

	Logger *slog.Logger
}

type Server struct {
	registrar *registrar.Registrar
	repo      *store.RegistrationRepo
	broker    *broker
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	rateMax   int

	field     domain.FieldDefinition
	script    []byte
	publicURL string
	version   string
	dev       bool
	activity  bool

	logger  *slog.Logger
	started time.Time
}

func New(opts Options) (*Server, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("server: bitrix client is required")
	}
	if opts.Field.ID == "" {
		opts.Field = fieldtype.Default()
	}
	if opts.Field.HandlerPath == "" {
		opts.Field.HandlerPath = fieldtype.DefaultHandlerPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	script, err := fieldtype.Script(opts.Field)
	if err != nil {
		return nil, err
	}

	s := &Server{
		repo:      opts.Repo,
		broker:    newBroker(),
		metrics:   opts.Metrics,
		field:     opts.Field,
		script:    script,
		publicURL: opts.PublicURL,
		version:   opts.Version,
		dev:       opts.Development,
		activity:  opts.ExposeActivity,
		logger:    opts.Logger,
		started:   time.Now(),
	}

	if opts.RateMax > 0 && opts.RateWindow > 0 {
		s.rateMax = opts.RateMax
		s.limiter = rate.NewLimiter(rate.Every(opts.RateWindow/time.Duration(opts.RateMax)), opts.RateMax)
	}

	regOpts := []registrar.Option{
		registrar.WithEmitter(s),
		registrar.WithObserver(s.metrics),
		registrar.WithLogger(s.logger),
	}
	if opts.Cache != nil {
		regOpts = append(regOpts, registrar.WithCache(opts.Cache))
	}
	if opts.Repo != nil {
		regOpts = append(regOpts, registrar.WithRecorder(opts.Repo))
	}

	s.registrar = registrar.New(opts.Client, registrar.Config{
		Endpoints:     opts.Endpoints,
		DefaultDomain: opts.DefaultDomain,
		Field:         opts.Field,
	}, regOpts...)

	return s, nil
}

func (s *Server) Registrar() *registrar.Registrar { return s.registrar }

// Handler is Routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Routes()
	h = s.rateLimit(h)
	h = s.requestLog(h)
	h = securityHeaders(h)
	h = s.recoverer(h)
	return h
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc(s.field.HandlerPath, s.handleScript)
	mux.HandleFunc("/health", s.handleHealth)

	if s.activity {
		mux.HandleFunc("/events", s.handleEvents)
		mux.HandleFunc("/api/registrations", api.WrapMethod(http.MethodGet, s.registrationsAPI))
		mux.HandleFunc("/api/registrations/summary", api.WrapMethod(http.MethodGet, s.summaryAPI))
	}
	mux.Handle("/metrics", s.metrics.Handler())

	return mux
}
