package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Vision      VisionConfig      `yaml:"vision"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Emotion     EmotionConfig     `yaml:"emotion"`
	Agent       AgentConfig       `yaml:"agent"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	EmbeddingDim       int     `yaml:"embedding_dim"`
}

// RecognitionConfig controls the matching and deduplication decision engine.
type RecognitionConfig struct {
	MatchThreshold     float64 `yaml:"match_threshold"`
	DedupWindowSeconds int     `yaml:"dedup_window_seconds"`
}

func (r RecognitionConfig) DedupWindow() time.Duration {
	return time.Duration(r.DedupWindowSeconds) * time.Second
}

// EmotionConfig controls the emotion session aggregator.
type EmotionConfig struct {
	// AttentionSliceSeconds is the nominal duration each frame record
	// contributes toward attention time when the user is looking at the camera.
	AttentionSliceSeconds int `yaml:"attention_slice_seconds"`
	SessionListLimit      int `yaml:"session_list_limit"`
}

func (e EmotionConfig) AttentionSlice() time.Duration {
	return time.Duration(e.AttentionSliceSeconds) * time.Second
}

// AgentConfig drives the camera agent binary. Mode "verify" posts frames
// to the attendance verification endpoint; mode "monitor" opens an emotion
// session for UserID and posts frames to it.
type AgentConfig struct {
	APIURL     string `yaml:"api_url"`
	CameraURL  string `yaml:"camera_url"`
	Mode       string `yaml:"mode"`
	UserID     string `yaml:"user_id"`
	FPS        int    `yaml:"fps"`
	FrameWidth int    `yaml:"frame_width"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.EmbeddingDim == 0 {
		cfg.Vision.EmbeddingDim = 128
	}
	if cfg.Recognition.MatchThreshold == 0 {
		cfg.Recognition.MatchThreshold = 0.6
	}
	if cfg.Recognition.DedupWindowSeconds == 0 {
		cfg.Recognition.DedupWindowSeconds = 300
	}
	if cfg.Emotion.AttentionSliceSeconds == 0 {
		cfg.Emotion.AttentionSliceSeconds = 5
	}
	if cfg.Emotion.SessionListLimit == 0 {
		cfg.Emotion.SessionListLimit = 50
	}
	if cfg.Agent.APIURL == "" {
		cfg.Agent.APIURL = "http://localhost:8080"
	}
	if cfg.Agent.Mode == "" {
		cfg.Agent.Mode = "verify"
	}
	if cfg.Agent.FPS == 0 {
		cfg.Agent.FPS = 1
	}
	if cfg.Agent.FrameWidth == 0 {
		cfg.Agent.FrameWidth = 640
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PS_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PS_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PS_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PS_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PS_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PS_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PS_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PS_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PS_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recognition.MatchThreshold = f
		}
	}
	if v := os.Getenv("PS_DEDUP_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recognition.DedupWindowSeconds = n
		}
	}
	if v := os.Getenv("PS_ATTENTION_SLICE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Emotion.AttentionSliceSeconds = n
		}
	}
	if v := os.Getenv("PS_AGENT_API_URL"); v != "" {
		cfg.Agent.APIURL = v
	}
	if v := os.Getenv("PS_AGENT_CAMERA_URL"); v != "" {
		cfg.Agent.CameraURL = v
	}
	if v := os.Getenv("PS_AGENT_MODE"); v != "" {
		cfg.Agent.Mode = v
	}
	if v := os.Getenv("PS_AGENT_USER_ID"); v != "" {
		cfg.Agent.UserID = v
	}
}
