package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Upload   UploadConfig   `yaml:"upload"`
	Logger   LoggerConfig   `yaml:"logger"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// gin 运行模式：debug/release/test
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	// mysql / sqlite
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`
	// sqlite 文件路径（driver=sqlite 时生效）
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 工单列表快照的过期时间（秒）
	TicketListTTL int `yaml:"ticket_list_ttl"`
}

// Enabled host 为空时不连 Redis，改用进程内缓存
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LLMConfig struct {
	// dify / openai
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// openai 兼容接口使用的模型名
	Model string `yaml:"model"`
	// 图片生成模型，仅 openai 支持
	ImageModel string `yaml:"image_model"`
	// 单次调用的 HTTP 超时（秒），0 表示使用默认值
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// 以下仅 dify 使用
	// 应用类型：workflow/chat/completion
	AppType string `yaml:"app_type"`
	// response_mode: blocking/streaming（只支持 blocking）
	ResponseMode      string `yaml:"response_mode"`
	WorkflowSystemKey string `yaml:"workflow_system_key"`
	WorkflowQueryKey  string `yaml:"workflow_query_key"`
	// Workflow 输出字段名（为空则自动猜测）
	WorkflowOutputKey string `yaml:"workflow_output_key"`
}

type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
}

type UploadConfig struct {
	Dir string `yaml:"dir"`
	// 对外访问前缀，例如 http://localhost:8080/uploads
	BaseURL  string `yaml:"base_url"`
	MaxBytes int64  `yaml:"max_bytes"`
}

type LoggerConfig struct {
	// debug/info/warn/error
	Level string `yaml:"level"`
	// console/json
	Format string `yaml:"format"`
	// stdout/stderr/文件路径
	OutputPath string `yaml:"output_path"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults 补全未填写的配置项
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "data/support-lab.db"
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.TicketListTTL <= 0 {
		c.Redis.TicketListTTL = 60
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "dify"
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 120
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 1025
	}
	if c.SMTP.FromName == "" {
		c.SMTP.FromName = "Support Lab"
	}

	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.BaseURL == "" {
		c.Upload.BaseURL = fmt.Sprintf("http://localhost:%d/uploads", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.OutputPath == "" {
		c.Logger.OutputPath = "stdout"
	}
}
