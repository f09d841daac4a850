package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/skillvault/internal/linkgraph"
	"github.com/starford/skillvault/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Database DatabaseConfig    `yaml:"database"`
	Auth     AuthConfig        `yaml:"auth"`
	Links    LinksConfig       `yaml:"links"`
	Render   RenderConfig      `yaml:"render"`
	Seeding  SeedingConfig     `yaml:"seeding"`
	Events   EventsConfig      `yaml:"events"`
	MCP      MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Database, &c.Auth, &c.Links, &c.Render, &c.Events} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DatabaseConfig selects the SQL driver and its DSN. For sqlite3 the DSN may
// be a plain file path.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//
// UserHeader names the trusted header carrying the acting user id.
type AuthConfig struct {
	Mode       string `yaml:"mode"`
	Token      string `yaml:"token"`
	UserHeader string `yaml:"user_header"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LinksConfig controls link graph synchronization.
type LinksConfig struct {
	// OwnershipPolicy is "abort" or "skip"; see linkgraph.Policy.
	OwnershipPolicy string `yaml:"ownership_policy"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if c.OwnershipPolicy == "" {
		c.OwnershipPolicy = string(linkgraph.PolicyAbort)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.OwnershipPolicy, validation.In(string(linkgraph.PolicyAbort), string(linkgraph.PolicySkip))),
	)
}

// RenderConfig controls mention rendering.
type RenderConfig struct {
	// SkillsPrefix is the viewer base path used by linked mentions.
	SkillsPrefix string `yaml:"skills_prefix"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SkillsPrefix, validation.Length(0, 200)),
	)
}

// SeedingConfig controls default skill templates.
type SeedingConfig struct {
	// TemplatesDir holds one sub-directory per template; empty disables seeding.
	TemplatesDir string `yaml:"templates_dir"`
	// Watch reseeds when TemplatesDir changes.
	Watch bool `yaml:"watch"`
	// SeedUserID receives the templates at startup and on change.
	SeedUserID string `yaml:"seed_user_id"`
}

// EventsConfig tunes the SSE broker.
type EventsConfig struct {
	GraphThrottle time.Duration `yaml:"graph_throttle"`
	KeepAlive     time.Duration `yaml:"keep_alive"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GraphThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.KeepAlive, validation.Min(time.Duration(0))),
	)
}

// MCPConfig holds the stdio MCP server settings.
type MCPConfig struct {
	// UserID is the user MCP tools act as. Empty allows read-only access to
	// every skill.
	UserID string `yaml:"user_id"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Database: DatabaseConfig{
			Driver: store.DriverSQLite,
			DSN:    "./skillvault.db",
		},
		Auth: AuthConfig{
			Mode:       AuthModeDisabled,
			UserHeader: "X-User-ID",
		},
		Links: LinksConfig{
			OwnershipPolicy: string(linkgraph.PolicyAbort),
		},
		Events: EventsConfig{
			GraphThrottle: 2 * time.Second,
			KeepAlive:     30 * time.Second,
		},
	}
}
