package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Retention RetentionConfig `mapstructure:"retention"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Minio     MinioConfig     `mapstructure:"minio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Log       LogConfig       `mapstructure:"log"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	StaticPath      string        `mapstructure:"static_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig basic auth credentials
type AuthConfig struct {
	Login    string `mapstructure:"login"`
	Password string `mapstructure:"password"`
	// UsingDefaults is set by Load when the built-in credentials are in effect.
	UsingDefaults bool `mapstructure:"-"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
	FieldName   string `mapstructure:"field_name"`
}

// TranscodeConfig 转码配置
type TranscodeConfig struct {
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FFprobePath      string        `mapstructure:"ffprobe_path"`
	Preset           string        `mapstructure:"preset"`
	AudioCodec       string        `mapstructure:"audio_codec"`
	AllowedCodecs    []string      `mapstructure:"allowed_codecs"`
	PassTimeout      time.Duration `mapstructure:"pass_timeout"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ThumbnailTimeout time.Duration `mapstructure:"thumbnail_timeout"`
	StderrTailLines  int           `mapstructure:"stderr_tail_lines"`
}

// PlannerConfig bitrate planner switches
type PlannerConfig struct {
	DefaultAudioBitrateKbps int  `mapstructure:"default_audio_bitrate_kbps"`
	MinVideoBitrateKbps     int  `mapstructure:"min_video_bitrate_kbps"`
	RotationAware           bool `mapstructure:"rotation_aware"`
}

// RetentionConfig 过期产物清理配置
type RetentionConfig struct {
	MaxAge        time.Duration `mapstructure:"max_age"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// DeliveryConfig 下载配置
type DeliveryConfig struct {
	// NotReadyPolicy is either "redirect" or "not_found".
	NotReadyPolicy string `mapstructure:"not_ready_policy"`
}

// RateLimitConfig admission control for new transcode jobs
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled          bool              `mapstructure:"enabled"`
	BootstrapServers []string          `mapstructure:"bootstrap_servers"`
	ClientID         string            `mapstructure:"client_id"`
	Topics           KafkaTopicsConfig `mapstructure:"topics"`
}

type KafkaTopicsConfig struct {
	JobEvents string `mapstructure:"job_events"`
}

// DiscoveryConfig etcd 实例登记配置
type DiscoveryConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Endpoints      []string      `mapstructure:"endpoints"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceID      string        `mapstructure:"service_id"`
	// RegisterHost is the host advertised to etcd; defaults to the hostname.
	RegisterHost string        `mapstructure:"register_host"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// ProfilingConfig pyroscope settings
type ProfilingConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

const (
	defaultLogin    = "user"
	defaultPassword = "password"
)

// legacyEnv maps config keys to the bare environment variables the service
// has always honoured.
var legacyEnv = map[string]string{
	"transcode.ffprobe_path": "FFPROBE_PATH",
	"transcode.ffmpeg_path":  "FFMPEG_PATH",
	"auth.login":             "LOGIN",
	"auth.password":          "PASSWORD",
	"server.port":            "PORT",
	"upload.dir":             "UPLOADS_DIR",
	"server.static_path":     "STATIC_PATH",
}

// Load 加载配置. An empty configPath means defaults plus environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// 设置环境变量前缀
	v.SetEnvPrefix("SIZEFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "SIZEFIT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Auth.UsingDefaults = config.Auth.Login == defaultLogin && config.Auth.Password == defaultPassword

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("auth.login", defaultLogin)
	v.SetDefault("auth.password", defaultPassword)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_file_size", int64(1000*1000*1000))
	v.SetDefault("upload.field_name", "video")

	v.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcode.ffprobe_path", "ffprobe")
	v.SetDefault("transcode.preset", "medium")
	v.SetDefault("transcode.audio_codec", "libopus")
	v.SetDefault("transcode.allowed_codecs", []string{"libx264", "libx265"})
	v.SetDefault("transcode.pass_timeout", 300*time.Second)
	v.SetDefault("transcode.probe_timeout", 60*time.Second)
	v.SetDefault("transcode.thumbnail_timeout", 60*time.Second)
	v.SetDefault("transcode.stderr_tail_lines", 50)

	v.SetDefault("planner.default_audio_bitrate_kbps", 128)
	v.SetDefault("planner.min_video_bitrate_kbps", 0)
	v.SetDefault("planner.rotation_aware", true)

	v.SetDefault("retention.max_age", 15*time.Minute)
	v.SetDefault("retention.sweep_interval", 10*time.Minute)

	v.SetDefault("delivery.not_ready_policy", "redirect")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 3)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.key_prefix", "sizefit:transcode")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.prefix", "outputs")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.client_id", "sizefit-service")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.job_events", "sizefit.job.events")

	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.endpoints", []string{"localhost:2379"})
	v.SetDefault("discovery.dial_timeout", 5*time.Second)
	v.SetDefault("discovery.request_timeout", 5*time.Second)
	v.SetDefault("discovery.service_name", "sizefit-service")
	v.SetDefault("discovery.ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.application_name", "sizefit-service")
}

// normalize 补全配置的默认值
func (c *Config) normalize() error {
	// 兼容不同的密钥字段
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}

	dir, err := filepath.Abs(c.Upload.Dir)
	if err != nil {
		return fmt.Errorf("resolve upload dir: %w", err)
	}
	c.Upload.Dir = filepath.Clean(dir)

	if c.Server.StaticPath == "" {
		c.Server.StaticPath = discoverStaticPath()
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Transcode.PassTimeout <= 0 {
		c.Transcode.PassTimeout = 300 * time.Second
	}
	if c.Transcode.StderrTailLines <= 0 {
		c.Transcode.StderrTailLines = 50
	}
	if c.Planner.DefaultAudioBitrateKbps <= 0 {
		c.Planner.DefaultAudioBitrateKbps = 128
	}
	if c.Retention.SweepInterval <= 0 {
		c.Retention.SweepInterval = 10 * time.Minute
	}
	if c.Retention.MaxAge <= 0 {
		c.Retention.MaxAge = 15 * time.Minute
	}
	switch c.Delivery.NotReadyPolicy {
	case "redirect", "not_found":
	default:
		c.Delivery.NotReadyPolicy = "redirect"
	}
	if c.RateLimit.Limit <= 0 {
		c.RateLimit.Limit = 3
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "sizefit-service"
	}
	if c.Discovery.TTL <= 0 {
		c.Discovery.TTL = 30 * time.Second
	}
	if c.Discovery.RegisterHost == "" {
		if host, err := os.Hostname(); err == nil {
			c.Discovery.RegisterHost = host
		} else {
			c.Discovery.RegisterHost = "localhost"
		}
	}
	if c.Discovery.ServiceID == "" {
		c.Discovery.ServiceID = fmt.Sprintf("%s-%d", c.Discovery.RegisterHost, c.Server.Port)
	}
	return nil
}

// discoverStaticPath looks for a "static" directory next to the executable
// and then in the working directory. Empty means no static hosting.
func discoverStaticPath() string {
	candidates := make([]string, 0, 2)
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "static"))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, "static"))
	}
	for _, p := range candidates {
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return p
		}
	}
	return ""
}

// AdvertiseAddr is the address announced to etcd.
func (c *Config) AdvertiseAddr() string {
	return fmt.Sprintf("%s:%d", c.Discovery.RegisterHost, c.Server.Port)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
