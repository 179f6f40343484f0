package webserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	cnt "github.com/R3DPanda1/LWN-Sim-Node/controllers"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/frame"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/socket"
)

// connSubscriptions holds the active event stream unsubscribe functions for a single socket connection.
type connSubscriptions struct {
	mu    sync.Mutex
	funcs []func()
}

// WebServer represents a web server configuration including address, port, router setup, and server socket.
type WebServer struct {
	Address      string           // Address of the web server
	Port         int              // Port of the web server
	Router       *gin.Engine      // Router of the web server
	ServerSocket *socketio.Server // ServerSocket of the web server

	controller    cnt.SimulatorController
	subscriptions sync.Map // map[string]*connSubscriptions keyed by socket ID
}

// NewWebServer creates a new web server instance with the given configuration and simulator controller.
func NewWebServer(config *models.ServerConfig, controller cnt.SimulatorController) *WebServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	configCors := cors.DefaultConfig()
	configCors.AllowAllOrigins = true
	configCors.AllowHeaders = []string{"Origin", "Access-Control-Allow-Origin",
		"Access-Control-Allow-Headers", "Content-type"}
	configCors.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(configCors))
	router.Use(gin.Recovery())

	ws := &WebServer{
		Address:    config.Address,
		Port:       config.Port,
		Router:     router,
		controller: controller,
	}
	ws.ServerSocket = ws.newServerSocket()
	ws.routes()
	return ws
}

func (ws *WebServer) routes() {
	api := ws.Router.Group("/api")
	{
		api.GET("/start", ws.startSimulator)
		api.GET("/stop", ws.stopSimulator)
		api.GET("/status", ws.simulatorStatus)
		api.POST("/active", ws.setActive)
		api.POST("/cadence", ws.setCadence)
		api.GET("/measurement", ws.getMeasurement)
		api.GET("/frame/last", ws.getLastFrame)
		api.POST("/decode", ws.decodeFrame)
		api.GET("/uplinks", ws.getUplinks)
		api.GET("/uplinks/stats", ws.getUplinkStats)
		api.POST("/shutdown", ws.shutdown)
		api.GET("/codecs", ws.getCodecs)
		api.POST("/add-codec", ws.addCodec)
	}
	ws.Router.GET("/socket.io/*any", gin.WrapH(ws.ServerSocket))
	ws.Router.POST("/socket.io/*any", gin.WrapH(ws.ServerSocket))
	ws.Router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusMovedPermanently, "/api/status") })
}

// newServerSocket creates a new server socket instance and sets up the socket events.
func (ws *WebServer) newServerSocket() *socketio.Server {
	serverSocket := socketio.NewServer(nil)
	serverSocket.OnConnect("/", func(s socketio.Conn) error {
		slog.Debug("socket connected", "component", "webserver", "id", s.ID())
		s.SetContext("")
		return nil
	})
	serverSocket.OnDisconnect("/", func(s socketio.Conn, reason string) {
		ws.cleanupSocketSubscriptions(s.ID())
		serverSocket.Remove(s.ID())
		_ = s.Close()
	})
	serverSocket.OnEvent("/", socket.EventStatus, func(s socketio.Conn) simulator.NodeStatus {
		return ws.controller.Status()
	})
	serverSocket.OnEvent("/", socket.EventSetActive, func(s socketio.Conn, enable bool) string {
		return errString(ws.controller.SetActive(enable))
	})
	serverSocket.OnEvent("/", socket.EventSetCadence, func(s socketio.Conn, c socket.Cadence) string {
		return errString(ws.controller.SetCadence(c.IntervalSec, c.FastCount))
	})

	// Event stream subscriptions
	serverSocket.OnEvent("/", socket.EventStreamNodeEvents, func(s socketio.Conn) {
		ws.stream(s, events.NodeTopic(ws.controller.DevAddr()), socket.EventNodeEvent)
	})
	serverSocket.OnEvent("/", socket.EventStreamSystemEvents, func(s socketio.Conn) {
		ws.stream(s, events.SystemTopic, socket.EventSystemEvent)
	})
	serverSocket.OnEvent("/", socket.EventStopNodeEvents, func(s socketio.Conn) {
		ws.cleanupSocketSubscriptions(s.ID())
	})
	return serverSocket
}

// stream sends the topic history to the socket and then forwards live events
// until the subscription is cancelled.
func (ws *WebServer) stream(s socketio.Conn, topic, name string) {
	broker := ws.controller.GetEventBroker()
	if broker == nil {
		return
	}
	ch, history, unsub := broker.Subscribe(topic)
	ws.addSocketSubscription(s.ID(), unsub)

	for _, evt := range history {
		s.Emit(name, evt)
	}
	go func() {
		for evt := range ch {
			s.Emit(name, evt)
		}
	}()
}

func (ws *WebServer) addSocketSubscription(socketID string, unsub func()) {
	val, _ := ws.subscriptions.LoadOrStore(socketID, &connSubscriptions{})
	entry := val.(*connSubscriptions)
	entry.mu.Lock()
	entry.funcs = append(entry.funcs, unsub)
	entry.mu.Unlock()
}

func (ws *WebServer) cleanupSocketSubscriptions(socketID string) {
	val, ok := ws.subscriptions.LoadAndDelete(socketID)
	if !ok {
		return
	}
	entry := val.(*connSubscriptions)
	entry.mu.Lock()
	for _, fn := range entry.funcs {
		fn()
	}
	entry.funcs = nil
	entry.mu.Unlock()
}

// Run starts the socket server and listens on the given address and port.
func (ws *WebServer) Run() error {
	go func() {
		if err := ws.ServerSocket.Serve(); err != nil {
			slog.Error("socket server failed", "component", "webserver", "error", err)
		}
	}()
	fullAddress := ws.Address + ":" + strconv.Itoa(ws.Port)
	slog.Info("web server listening", "component", "webserver", "address", fullAddress)
	if err := ws.Router.Run(fullAddress); err != nil {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Close stops the socket server.
func (ws *WebServer) Close() error {
	return ws.ServerSocket.Close()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simulator.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, simulator.ErrJournalDisabled):
		return http.StatusNotFound
	case errors.Is(err, codec.ErrCodecNotFound):
		return http.StatusNotFound
	case errors.Is(err, simulator.ErrBadFrame),
		errors.Is(err, frame.ErrUnknownFormat),
		errors.Is(err, frame.ErrShortFrame),
		errors.Is(err, frame.ErrTrailingBytes),
		errors.Is(err, frame.ErrUnsupportedField),
		errors.Is(err, codec.ErrInvalidCodecFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// --- API Handlers ---

func (ws *WebServer) startSimulator(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.Run())
}

func (ws *WebServer) stopSimulator(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.Stop())
}

func (ws *WebServer) simulatorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.Status())
}

func (ws *WebServer) setActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.BindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "Invalid request"})
		return
	}
	if err := ws.controller.SetActive(*req.Active); err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ok", "active": *req.Active})
}

func (ws *WebServer) setCadence(c *gin.Context) {
	var req socket.Cadence
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "Invalid request"})
		return
	}
	if err := ws.controller.SetCadence(req.IntervalSec, req.FastCount); err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	st := ws.controller.Status()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "intervalSec": st.IntervalSec, "fastCyclesRemaining": st.FastCyclesRemaining})
}

func (ws *WebServer) getMeasurement(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.GetMeasurement())
}

func (ws *WebServer) getLastFrame(c *gin.Context) {
	f := ws.controller.GetLastFrame()
	if f == "" {
		c.JSON(http.StatusNotFound, gin.H{"status": "No frame sent yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frame": f})
}

func (ws *WebServer) decodeFrame(c *gin.Context) {
	var req struct {
		Frame string `json:"frame"`
		Codec string `json:"codec"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "Invalid request"})
		return
	}
	if req.Frame == "" {
		req.Frame = ws.controller.GetLastFrame()
	}
	res, err := ws.controller.Decode(req.Frame, req.Codec)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ws *WebServer) getUplinks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "Invalid limit", "error": err.Error()})
		return
	}
	entries, err := ws.controller.GetUplinks(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uplinks": entries})
}

func (ws *WebServer) getUplinkStats(c *gin.Context) {
	st, err := ws.controller.GetUplinkStats(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (ws *WebServer) shutdown(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": ws.controller.Stop()})
}

func (ws *WebServer) getCodecs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"codecs": ws.controller.GetCodecs()})
}

func (ws *WebServer) addCodec(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Script string `json:"script"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "Invalid JSON", "error": err.Error()})
		return
	}
	meta, err := ws.controller.AddCodec(req.Name, req.Script)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"status": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"codec": meta})
}
