package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iulianpascalau/psu-bridge/services/bridge/channels"
	"github.com/iulianpascalau/psu-bridge/services/bridge/common"
	"github.com/iulianpascalau/psu-bridge/services/bridge/metrics"
	"github.com/iulianpascalau/psu-bridge/services/bridge/store"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var log = logger.GetOrCreate("api")

const shutdownTimeout = 5 * time.Second

type server struct {
	router         *gin.Engine
	httpServer     *http.Server
	prefix         string
	registry       *channels.Registry
	table          VariableTable
	reader         ChannelReader
	collectors     *metrics.Collectors
	listenAddr     string
	generalHandler func(http.Handler) http.Handler
	wg             sync.WaitGroup
}

// WritePayload represents the incoming JSON body on PUT /api/pvs/:id
type WritePayload struct {
	Value *int64 `json:"value"`
}

// PVResponse is the representation of one process variable
type PVResponse struct {
	Name       string      `json:"name"`
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Value      interface{} `json:"value"`
	Unit       string      `json:"unit,omitempty"`
	Precision  int         `json:"precision"`
	Writable   bool        `json:"writable"`
	UpdatedAt  int64       `json:"updatedAt"`
	Stale      bool        `json:"stale"`
	ErrorCount uint64      `json:"errorCount"`
	Error      string      `json:"error,omitempty"`
}

// ArgsWebServer defines the web server arguments
type ArgsWebServer struct {
	ListenAddress  string
	Prefix         string
	Registry       *channels.Registry
	Table          VariableTable
	Reader         ChannelReader
	Collectors     *metrics.Collectors
	GeneralHandler func(http.Handler) http.Handler
}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if args.Registry == nil {
		return nil, errors.New("channel registry is required")
	}
	if check.IfNil(args.Table) {
		return nil, errors.New("variable table is required")
	}
	if check.IfNil(args.Reader) {
		return nil, errors.New("channel reader is required")
	}
	if check.IfNil(args.Collectors) {
		return nil, errors.New("metrics collectors are required")
	}
	if args.GeneralHandler == nil {
		return nil, errors.New("nil http handler")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())

	s := &server{
		router:         router,
		prefix:         args.Prefix,
		registry:       args.Registry,
		table:          args.Table,
		reader:         args.Reader,
		collectors:     args.Collectors,
		listenAddr:     args.ListenAddress,
		generalHandler: args.GeneralHandler,
	}

	s.setupRoutes()
	return s, nil
}

func (s *server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/pvs", s.handleListPVs)
		api.GET("/pvs/:id", s.handleReadPV)
		api.PUT("/pvs/:id", s.handleWritePV)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.collectors.Gatherer(), promhttp.HandlerOpts{})))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}

// Start listens and serves connections
func (s *server) Start() error {
	handler := s.generalHandler(s.router)

	s.httpServer = &http.Server{
		Addr:              s.listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: shutdownTimeout,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("starting HTTP server", "address", s.listenAddr)

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()

	return nil
}

// Address returns the actual listen address
func (s *server) Address() string {
	return s.listenAddr
}

// Close gracefully stops the server
func (s *server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.wg.Wait()

	return nil
}

// --- Handlers ---

func (s *server) handleListPVs(c *gin.Context) {
	values := s.table.Snapshot()

	out := make([]PVResponse, 0, len(values))
	for _, value := range values {
		spec, found := s.registry.Get(value.ID)
		if !found {
			continue
		}

		out = append(out, s.toResponse(spec, value))
	}

	c.JSON(http.StatusOK, gin.H{"pvs": out})
}

func (s *server) handleReadPV(c *gin.Context) {
	spec, found := s.lookup(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown process variable"})
		return
	}

	value, err := s.table.Get(spec.ID)
	if spec.OnDemand() && len(spec.Query) > 0 {
		value, err = s.reader.ReadNow(c.Request.Context(), spec.ID)
		if err != nil {
			log.Debug("on-demand read failed, serving last known value", "channel", spec.ID, "error", err)
			value, err = s.table.Get(spec.ID)
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.toResponse(spec, value))
}

func (s *server) handleWritePV(c *gin.Context) {
	spec, found := s.lookup(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown process variable"})
		return
	}

	var payload WritePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Value == nil {
		s.collectors.WriteRequests.WithLabelValues(spec.ID, "false").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	accepted, err := s.table.WriteRequest(spec.ID, *payload.Value)
	s.collectors.WriteRequests.WithLabelValues(spec.ID, strconv.FormatBool(accepted)).Inc()
	if err != nil {
		log.Debug("write request refused", "channel", spec.ID, "value", *payload.Value, "error", err)
		c.JSON(writeErrorStatus(err), gin.H{"accepted": false, "error": err.Error()})
		return
	}

	log.Debug("write request served", "channel", spec.ID, "sender", c.Request.RemoteAddr)
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func writeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotWritable):
		return http.StatusForbidden
	case errors.Is(err, store.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnknownChannel):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// lookup accepts both the channel identifier and the full prefixed name
func (s *server) lookup(name string) (channels.ChannelSpec, bool) {
	spec, found := s.registry.Get(name)
	if found {
		return spec, true
	}
	if len(s.prefix) == 0 || !strings.HasPrefix(name, s.prefix) {
		return channels.ChannelSpec{}, false
	}

	return s.registry.Get(strings.TrimPrefix(name, s.prefix))
}

func (s *server) toResponse(spec channels.ChannelSpec, value common.ChannelValue) PVResponse {
	response := PVResponse{
		Name:       s.prefix + spec.ID,
		ID:         spec.ID,
		Kind:       spec.Kind.String(),
		Value:      value.Value.Interface(),
		Unit:       spec.Unit,
		Precision:  spec.Precision,
		Writable:   spec.Writable(),
		Stale:      value.Stale,
		ErrorCount: value.ErrorCount,
		Error:      value.LastError,
	}
	if !value.UpdatedAt.IsZero() {
		response.UpdatedAt = value.UpdatedAt.UnixMilli()
	}
	return response
}
