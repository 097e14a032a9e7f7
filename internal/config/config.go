package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultHost                 = "0.0.0.0"
	defaultPort                 = 56789
	defaultPlayers              = 2
	defaultMaxHandshakeAttempts = 5
	defaultCodec                = CodecJSON
	defaultCardsDir             = "cards"
	defaultDownloadDir          = "cards/downloaded"
	defaultArchiveDir           = "decks/archive"
	defaultRedisAddr            = "localhost:6379"
	defaultHandSize             = 7
	defaultStartingLife         = 20
	defaultMinDeckSize          = 40
	defaultMaxDeckSize          = 250
	defaultMaxCopies            = 4
)

// 支持的编码
const (
	CodecJSON     = "json"
	CodecProtobuf = "protobuf"
)

// Config 服务端配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Assets  AssetsConfig  `yaml:"assets"`
	Archive ArchiveConfig `yaml:"archive"`
	Redis   RedisConfig   `yaml:"redis"`
	Game    GameConfig    `yaml:"game"`
}

// ServerConfig 会话服务器配置
type ServerConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`                   // 主端口，卡图端口为 port+座位号+1
	Players              int    `yaml:"players"`                // 本局玩家数
	MaxHandshakeAttempts int    `yaml:"max_handshake_attempts"` // 同一座位握手连续失败上限
	Codec                string `yaml:"codec"`                  // json / protobuf
}

// AssetsConfig 卡图目录配置
type AssetsConfig struct {
	CardsDir    string `yaml:"cards_dir"`
	DownloadDir string `yaml:"download_dir"`
}

// ArchiveConfig 牌组归档配置
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 游戏配置
type GameConfig struct {
	HandSize     int `yaml:"hand_size"`     // 起手牌数
	StartingLife int `yaml:"starting_life"` // 初始生命
	MinDeckSize  int `yaml:"min_deck_size"` // 牌组最少张数
	MaxDeckSize  int `yaml:"max_deck_size"` // 牌组最多张数
	MaxCopies    int `yaml:"max_copies"`    // 非基本地同名牌上限
}

// AssetPort 返回座位对应的卡图端口
func (c *ServerConfig) AssetPort(index int) int {
	return c.Port + index + 1
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.Players <= 0 {
		cfg.Server.Players = defaultPlayers
	}
	if cfg.Server.MaxHandshakeAttempts <= 0 {
		cfg.Server.MaxHandshakeAttempts = defaultMaxHandshakeAttempts
	}
	if cfg.Server.Codec == "" {
		cfg.Server.Codec = defaultCodec
	}
	if cfg.Assets.CardsDir == "" {
		cfg.Assets.CardsDir = defaultCardsDir
	}
	if cfg.Assets.DownloadDir == "" {
		cfg.Assets.DownloadDir = defaultDownloadDir
	}
	if cfg.Archive.Dir == "" {
		cfg.Archive.Dir = defaultArchiveDir
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaultRedisAddr
	}
	if cfg.Game.HandSize == 0 {
		cfg.Game.HandSize = defaultHandSize
	}
	if cfg.Game.StartingLife == 0 {
		cfg.Game.StartingLife = defaultStartingLife
	}
	if cfg.Game.MinDeckSize == 0 {
		cfg.Game.MinDeckSize = defaultMinDeckSize
	}
	if cfg.Game.MaxDeckSize <= 0 {
		cfg.Game.MaxDeckSize = defaultMaxDeckSize
	}
	if cfg.Game.MaxCopies == 0 {
		cfg.Game.MaxCopies = defaultMaxCopies
	}
}

// applyEnv 环境变量覆盖配置文件
func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	setInt("SERVER_PORT", &cfg.Server.Port)
	setInt("SERVER_PLAYERS", &cfg.Server.Players)
	if v := os.Getenv("SERVER_CODEC"); v != "" {
		cfg.Server.Codec = strings.ToLower(v)
	}
	if v := os.Getenv("ASSETS_CARDS_DIR"); v != "" {
		cfg.Assets.CardsDir = v
	}
	if v := os.Getenv("ASSETS_DOWNLOAD_DIR"); v != "" {
		cfg.Assets.DownloadDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	setInt("GAME_HAND_SIZE", &cfg.Game.HandSize)
}

func setInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
