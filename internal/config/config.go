package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql atau postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	AI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"ai"`

	Security struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
		OriginPatterns []string `yaml:"originPatterns"`
		RateLimit      struct {
			Max           int `yaml:"max"`
			WindowMinutes int `yaml:"windowMinutes"`
		} `yaml:"rateLimit"`
		MaxRequestBytes int64 `yaml:"maxRequestBytes"`
		MaxFileBytes    int64 `yaml:"maxFileBytes"`
	} `yaml:"security"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		EbookKey   string `yaml:"ebookKey"`
	} `yaml:"minio"`

	Mail struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"mail"`
}

// Load baca file config.yaml, lalu override dari env untuk secrets
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-2024-08-06"
	}
	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:8080",
			"https://lovable.app",
			"https://lovableproject.com",
		}
	}
	if len(c.Security.OriginPatterns) == 0 {
		c.Security.OriginPatterns = []string{
			`^https://[a-z0-9-]+\.lovable\.app$`,
			`^https://[a-z0-9-]+\.lovableproject\.com$`,
		}
	}
	if c.Security.RateLimit.Max == 0 {
		c.Security.RateLimit.Max = 20
	}
	if c.Security.RateLimit.WindowMinutes == 0 {
		c.Security.RateLimit.WindowMinutes = 60
	}
	if c.Security.MaxRequestBytes == 0 {
		c.Security.MaxRequestBytes = 10 << 20
	}
	if c.Security.MaxFileBytes == 0 {
		c.Security.MaxFileBytes = 5 << 20
	}
	if c.Minio.EbookKey == "" {
		c.Minio.EbookKey = "assets/credit-secrets-ebook.pdf"
	}
}

// env menang atas yaml, supaya secrets tidak perlu masuk file
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslMode,
	)
}
