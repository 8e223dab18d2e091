package remote

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/vctrl/vctrl/pkg/object"
	"github.com/vctrl/vctrl/pkg/repo"
)

// maxObjectUpload bounds a single PUT /objects/:oid body.
const maxObjectUpload = 32 << 20

// ServerOptions configures a Server.
type ServerOptions struct {
	// Auth lists accepted bearer tokens and bcrypt-hashed basic-auth users.
	// When both are empty the server is open.
	Auth repo.ServerConfig

	// Logger receives one line per request. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server exposes a repository over the HTTP object transport:
//
//	GET  /refs          branch refs as {"heads/main": "<oid>"}
//	PUT  /refs/*name    {"oid": "<oid>"}; the object must already be stored
//	                    and the move must fast-forward the current tip
//	GET  /objects       every stored oid
//	GET  /objects/:oid  compressed object bytes
//	PUT  /objects/:oid  compressed object bytes, verified against :oid
//	GET  /metrics       Prometheus metrics
type Server struct {
	repo    *repo.Repo
	auth    repo.ServerConfig
	logger  *slog.Logger
	metrics *serverMetrics

	// refMu serializes the fast-forward check with the ref write.
	refMu sync.Mutex
}

type serverMetrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	objectsReceived prometheus.Counter
	objectsServed   prometheus.Counter
	refUpdates      *prometheus.CounterVec
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vctrl_http_request_duration_seconds",
			Help:    "Duration of transport HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vctrl_http_requests_total",
			Help: "Total number of transport HTTP requests",
		}, []string{"method", "route", "status"}),
		objectsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vctrl_objects_received_total",
			Help: "Objects stored from PUT /objects",
		}),
		objectsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vctrl_objects_served_total",
			Help: "Objects returned from GET /objects/:oid",
		}),
		refUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vctrl_ref_updates_total",
			Help: "Branch ref updates by result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.objectsReceived,
		m.objectsServed,
		m.refUpdates,
	)
	return m
}

// NewServer creates a transport server for r.
func NewServer(r *repo.Repo, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		repo:    r,
		auth:    opts.Auth,
		logger:  logger,
		metrics: newServerMetrics(),
	}
}

// Handler returns a gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes installs the transport routes on router.
func (s *Server) RegisterRoutes(router gin.IRouter) {
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	api := router.Group("/")
	api.Use(s.observe(), s.requireAuth())
	api.GET("/refs", s.handleListRefs)
	api.PUT("/refs/*name", s.handleUpdateRef)
	api.GET("/objects", s.handleListObjects)
	api.GET("/objects/:oid", s.handleGetObject)
	api.PUT("/objects/:oid", s.handlePutObject)
}

// observe records request metrics and logs one line per request.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		s.metrics.requestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
		s.metrics.requestsTotal.WithLabelValues(method, route, status).Inc()
		s.logger.Info("request",
			slog.String("method", method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", duration),
		)
	}
}

// requireAuth accepts a configured bearer token or a basic-auth user whose
// password matches the stored bcrypt hash.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.auth.Tokens) == 0 && len(s.auth.Users) == 0 {
			c.Next()
			return
		}
		if s.authenticated(c.Request) {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", `Basic realm="vctrl"`)
		s.abort(c, http.StatusUnauthorized, codeUnauthorized, "authentication required", "")
	}
}

func (s *Server) authenticated(req *http.Request) bool {
	if bearer, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer "); ok {
		bearer = strings.TrimSpace(bearer)
		for _, tok := range s.auth.Tokens {
			if tok != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(bearer)) == 1 {
				return true
			}
		}
		return false
	}
	user, pass, ok := req.BasicAuth()
	if !ok {
		return false
	}
	hash, ok := s.auth.Users[user]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}

func (s *Server) handleListRefs(c *gin.Context) {
	raw, err := s.repo.ListRefs()
	if err != nil {
		s.fail(c, err)
		return
	}
	refs := make(map[string]string, len(raw))
	for name, content := range raw {
		short, ok := strings.CutPrefix(name, "refs/")
		if !ok || !strings.HasPrefix(short, "heads/") {
			continue
		}
		if object.ValidateOid(object.Oid(content)) != nil {
			continue
		}
		refs[short] = content
	}
	s.writeJSON(c, http.StatusOK, refs)
}

func (s *Server) handleUpdateRef(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if err := validateRemoteRef(name); err != nil {
		s.metrics.refUpdates.WithLabelValues("rejected").Inc()
		s.abort(c, http.StatusBadRequest, codeBadRequest, "invalid ref name", err.Error())
		return
	}
	var body refUpdateRequest
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, 1<<16)).Decode(&body); err != nil {
		s.metrics.refUpdates.WithLabelValues("rejected").Inc()
		s.abort(c, http.StatusBadRequest, codeBadRequest, "invalid ref update body", err.Error())
		return
	}
	oid := object.Oid(strings.TrimSpace(body.Oid))
	if err := object.ValidateOid(oid); err != nil {
		s.metrics.refUpdates.WithLabelValues("rejected").Inc()
		s.abort(c, http.StatusBadRequest, codeBadRequest, "invalid oid", err.Error())
		return
	}
	if !s.repo.Store.Has(oid) {
		s.metrics.refUpdates.WithLabelValues("rejected").Inc()
		s.abort(c, http.StatusConflict, codeMissingObject, "ref target is not stored", string(oid))
		return
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()
	if current, err := s.repo.ResolveRef("refs/" + name); err == nil && current != oid {
		ff, err := isAncestor(s.repo, current, oid)
		if err != nil {
			s.metrics.refUpdates.WithLabelValues("rejected").Inc()
			s.fail(c, err)
			return
		}
		if !ff {
			s.metrics.refUpdates.WithLabelValues("rejected").Inc()
			s.abort(c, http.StatusConflict, codeConflict, "non-fast-forward ref update", string(current))
			return
		}
	} else if err != nil && !errors.Is(err, repo.ErrRefNotFound) {
		s.metrics.refUpdates.WithLabelValues("failed").Inc()
		s.fail(c, err)
		return
	}
	if err := s.repo.UpdateRef(name, oid); err != nil {
		s.metrics.refUpdates.WithLabelValues("failed").Inc()
		s.fail(c, err)
		return
	}
	s.metrics.refUpdates.WithLabelValues("updated").Inc()
	s.logger.Info("ref updated", slog.String("ref", name), slog.String("oid", string(oid)))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListObjects(c *gin.Context) {
	oids, err := s.repo.Store.List()
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]string, len(oids))
	for i, oid := range oids {
		out[i] = string(oid)
	}
	s.writeJSON(c, http.StatusOK, out)
}

func (s *Server) handleGetObject(c *gin.Context) {
	oid := object.Oid(c.Param("oid"))
	raw, err := s.repo.Store.ReadRaw(oid)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.objectsServed.Inc()
	c.Data(http.StatusOK, "application/octet-stream", raw)
}

func (s *Server) handlePutObject(c *gin.Context) {
	oid := object.Oid(c.Param("oid"))
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxObjectUpload+1))
	if err != nil {
		s.abort(c, http.StatusBadRequest, codeBadRequest, "read body", err.Error())
		return
	}
	if len(raw) > maxObjectUpload {
		s.abort(c, http.StatusRequestEntityTooLarge, codeBadRequest, "object too large", "")
		return
	}
	if err := s.repo.Store.WriteRaw(oid, raw); err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.objectsReceived.Inc()
	c.Status(http.StatusNoContent)
}

// writeJSON encodes v and compresses it with zstd when the client asks.
func (s *Server) writeJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.fail(c, err)
		return
	}
	if isZstdEncoded(c.GetHeader("Accept-Encoding")) {
		compressed, err := compressZstd(data)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header("Content-Encoding", encodingZstd)
		c.Data(status, "application/json", compressed)
		return
	}
	c.Data(status, "application/json", data)
}

// fail maps repository errors onto transport status codes.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, object.ErrObjectNotFound), errors.Is(err, repo.ErrRefNotFound):
		s.abort(c, http.StatusNotFound, codeNotFound, "not found", err.Error())
	case errors.Is(err, object.ErrCorruptObject):
		s.abort(c, http.StatusBadRequest, codeCorrupt, "corrupt object", err.Error())
	case errors.Is(err, object.ErrInvalidArgument), errors.Is(err, object.ErrTypeMismatch):
		s.abort(c, http.StatusBadRequest, codeBadRequest, "invalid request", err.Error())
	default:
		s.logger.Error("request failed", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))
		s.abort(c, http.StatusInternalServerError, codeInternal, "internal error", "")
	}
}

func (s *Server) abort(c *gin.Context, status int, code, message, detail string) {
	c.AbortWithStatusJSON(status, &RemoteError{Code: code, Message: message, Detail: detail})
}
