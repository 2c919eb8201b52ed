package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sahadipankar/PresenSense/internal/api/handlers"
	"github.com/Sahadipankar/PresenSense/internal/api/ws"
	"github.com/Sahadipankar/PresenSense/internal/auth"
	"github.com/Sahadipankar/PresenSense/internal/queue"
	"github.com/Sahadipankar/PresenSense/internal/recognition"
	"github.com/Sahadipankar/PresenSense/internal/session"
	"github.com/Sahadipankar/PresenSense/internal/storage"
	"github.com/Sahadipankar/PresenSense/internal/vision"
)

type RouterConfig struct {
	APIKey     string
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *queue.Producer
	Hub        *ws.Hub
	Gate       *recognition.Gate
	Aggregator *session.Aggregator
	// EnrollFn extracts an embedding from an enrollment photo (exactly one face).
	EnrollFn func(imageData []byte) ([]float32, float32, error)
	// ProbeFn extracts an embedding from the best face in a probe image.
	ProbeFn func(imageData []byte) ([]float32, float32, error)
	// AnalyzeFn classifies emotion and eye contact of a monitoring frame.
	AnalyzeFn func(imageData []byte) (*vision.FrameAnalysis, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket live feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Users
	userH := handlers.NewUserHandler(cfg.DB, cfg.MinIO)
	userH.EmbedFn = cfg.EnrollFn
	v1.POST("/users", userH.Register)
	v1.GET("/users", userH.List)
	v1.GET("/users/:id", userH.Get)
	v1.GET("/users/:id/photo", userH.Photo)

	// Verification
	verifyH := handlers.NewVerifyHandler(cfg.Gate, cfg.Producer)
	verifyH.EmbedFn = cfg.ProbeFn
	v1.POST("/verify", verifyH.Verify)
	v1.POST("/verify/stream", verifyH.VerifyStream)

	// Attendance report
	attH := handlers.NewAttendanceHandler(cfg.DB)
	v1.GET("/attendance", attH.List)
	v1.DELETE("/attendance", attH.Clear)
	v1.DELETE("/attendance/:id", attH.DeleteEvent)

	// Emotion sessions
	sessH := handlers.NewSessionHandler(cfg.Aggregator, cfg.Producer)
	sessH.AnalyzeFn = cfg.AnalyzeFn
	v1.POST("/sessions", sessH.Start)
	v1.GET("/sessions", sessH.List)
	v1.GET("/sessions/:id", sessH.Stats)
	v1.POST("/sessions/:id/frames", sessH.RecordFrame)
	v1.POST("/sessions/:id/end", sessH.End)

	return r
}
