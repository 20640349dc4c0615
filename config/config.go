package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-kyugo/preify/validation"
)

// Fail actions applied by router.Pre when a pre-handler replies with an error.
const (
	FailError  = "error"
	FailLog    = "log"
	FailIgnore = "ignore"
)

type AppConfig struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
	Debug       bool   `json:"debug"`
	LogLevel    string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type ServerConfig struct {
	Host                string     `json:"host"`
	Port                int        `json:"port" validate:"gte=0,lte=65535"`
	ReadTimeoutSeconds  int        `json:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int        `json:"write_timeout_seconds" validate:"gte=0"`
	Cors                CorsConfig `json:"cors,omitempty"`
}

type CorsConfig struct {
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	AllowedMethods []string `json:"allowed_methods,omitempty"`
	AllowedHeaders []string `json:"allowed_headers,omitempty"`
}

// PreConfig tunes the pre-handler binding.
type PreConfig struct {
	FailAction string `json:"fail_action" validate:"omitempty,oneof=error log ignore"`
	// Debug logs every assignment made by router.Pre.
	Debug bool `json:"debug"`
}

type Config struct {
	App    AppConfig    `json:"app"`
	Server ServerConfig `json:"server"`
	Pre    PreConfig    `json:"pre"`
}

// Default returns the configuration used when no file is loaded.
func Default() Config {
	return Config{
		App:    AppConfig{Name: "preify", Environment: "development", LogLevel: "info"},
		Server: ServerConfig{Host: "", Port: 8080},
		Pre:    PreConfig{FailAction: FailError},
	}
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// ValidationError lists every field of a config file that failed validation.
type ValidationError struct {
	Path   string
	Fields []validation.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Code)
	}
	return fmt.Sprintf("config %s: %s", e.Path, strings.Join(parts, ", "))
}

// Load reads the JSON file at path into v and validates it.
func Load(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if err := validation.Validate(v); err != nil {
		return &ValidationError{Path: path, Fields: validation.FormatValidationErrors(err)}
	}
	return nil
}

func MustLoad(path string, v interface{}) {
	if err := Load(path, v); err != nil {
		panic(err)
	}
}

var ConfigVar = Default()

// LoadConfig loads path over the defaults into ConfigVar. ConfigVar is left
// untouched when loading fails.
func LoadConfig(path string) error {
	c := Default()
	if err := Load(path, &c); err != nil {
		return err
	}
	ConfigVar = c
	return nil
}

func LoadDefaultConfig() error {
	return LoadConfig("config.json")
}

func MustLoadConfig(path string) {
	if err := LoadConfig(path); err != nil {
		panic(err)
	}
}
