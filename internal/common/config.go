package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	LLM    LLMConfig
	PDF    PDFConfig
	Server ServerConfig
	Log    LogConfig
}

// LLMConfig holds model backend configuration
type LLMConfig struct {
	BaseURL     string        `env:"MISTRAL_BASE_URL" envDefault:"https://api.mistral.ai/v1"`
	Model       string        `env:"MISTRAL_MODEL" envDefault:"mistral-large-latest"`
	APIKey      string        `env:"MISTRAL_API_KEY"`
	Temperature float32       `env:"MISTRAL_TEMPERATURE" envDefault:"0"`
	Timeout     time.Duration `env:"MISTRAL_TIMEOUT" envDefault:"60s"`
}

// PDFConfig holds document loader configuration
type PDFConfig struct {
	Pdftotext     string `env:"PDFTOTEXT_BIN" envDefault:"pdftotext"`
	Pdftoppm      string `env:"PDFTOPPM_BIN" envDefault:"pdftoppm"`
	Tesseract     string `env:"TESSERACT_BIN" envDefault:"tesseract"`
	TesseractLang string `env:"TESSERACT_LANG" envDefault:"eng"`
	TessdataDir   string `env:"TESSDATA_PREFIX"`
	OCRFallback   bool   `env:"PDF_OCR_FALLBACK" envDefault:"false"`
	DPI           int    `env:"PDF_OCR_DPI" envDefault:"300"`
	MaxPages      int    `env:"PDF_MAX_PAGES" envDefault:"0"`
}

// ServerConfig holds UI server configuration
type ServerConfig struct {
	HTTPAddr    string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string        `env:"GRPC_ADDR" envDefault:":9090"`
	OutputDir   string        `env:"OUTPUT_DIR" envDefault:"./data"`
	ScratchDir  string        `env:"SCRATCH_DIR"` // empty -> os.TempDir()
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	MaxUploadMB int64         `env:"MAX_UPLOAD_MB" envDefault:"32"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"` // text | json
}

// LoadConfig loads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	return cfg, nil
}

// Validate checks everything the extraction pipeline needs. It never prompts.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewConfigError("MISTRAL_API_KEY is required (set it in the environment or in a .env file)")
	}
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return NewConfigError("MISTRAL_BASE_URL must not be empty")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return NewConfigError("MISTRAL_MODEL must not be empty")
	}
	if c.LLM.Timeout <= 0 {
		return NewConfigError("MISTRAL_TIMEOUT must be positive")
	}
	return nil
}

// ValidateServer additionally checks the UI server settings.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.HTTPAddr == "" {
		return NewConfigError("HTTP_ADDR is required")
	}
	if c.Server.OutputDir == "" {
		return NewConfigError("OUTPUT_DIR is required")
	}
	if c.Server.MaxUploadMB <= 0 {
		return NewConfigError("MAX_UPLOAD_MB must be positive")
	}
	return nil
}
