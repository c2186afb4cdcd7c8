// Package setup registers the ccas MCP tools with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServerName is the key of the ccas entry in a client's server table
const ServerName = "ccas"

// ClientConfig represents a desktop MCP client configuration file. Entries
// other than mcpServers are preserved as read.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	Other      map[string]json.RawMessage `json:"-"`
}

// MCPServerConfig represents a single MCP server configuration
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options describes the ccas entry to write
type Options struct {
	BinaryPath  string
	DataDir     string
	RecordsPath string
	MongoURI    string
	DatabaseURL string
}

// Status is what a client configuration says about ccas
type Status struct {
	ConfigPath string
	Configured bool
	BinaryPath string
	DataDir    string
	Issues     []string
}

// DefaultConfigPath returns the Claude Desktop configuration path of this platform
func DefaultConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		return filepath.Join(configDir, "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LoadClientConfig reads a client configuration; a missing file is empty
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]MCPServerConfig),
		Other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.Other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.Other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.Other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}
	return cfg, nil
}

// SaveClientConfig writes the configuration back, creating its directory
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(cfg.Other)+1)
	for k, v := range cfg.Other {
		out[k] = v
	}
	out["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ServerEntry builds the entry that starts ccas serve-mcp
func ServerEntry(opts Options) MCPServerConfig {
	entry := MCPServerConfig{
		Command: opts.BinaryPath,
		Args:    []string{"serve-mcp"},
		Env:     make(map[string]string),
	}
	if opts.RecordsPath != "" {
		entry.Args = append(entry.Args, "--records", opts.RecordsPath)
	}
	if opts.DatabaseURL != "" {
		entry.Args = append(entry.Args, "--database-url", opts.DatabaseURL)
	}
	if opts.DataDir != "" {
		entry.Env["CCAS_DATA_DIR"] = opts.DataDir
	}
	if opts.MongoURI != "" {
		entry.Env["CCAS_MONGO_URI"] = opts.MongoURI
	}
	return entry
}

// Register adds or replaces the ccas entry in the configuration at path
func Register(path string, opts Options) error {
	if opts.BinaryPath == "" {
		return fmt.Errorf("binary path is required")
	}
	if opts.RecordsPath == "" && opts.MongoURI == "" {
		return fmt.Errorf("either a records file or a MongoDB URI is required")
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return err
	}
	cfg.MCPServers[ServerName] = ServerEntry(opts)
	return SaveClientConfig(path, cfg)
}

// GetStatus inspects the configuration at path
func GetStatus(path string) (*Status, error) {
	status := &Status{ConfigPath: path, Issues: []string{}}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}
	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "ccas is not registered")
		return status, nil
	}

	status.Configured = true
	status.BinaryPath = entry.Command
	status.DataDir = entry.Env["CCAS_DATA_DIR"]

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	} else if info.Mode()&0o111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}
	if status.DataDir != "" {
		if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
			status.Issues = append(status.Issues, fmt.Sprintf("Data directory will be created on first run: %s", status.DataDir))
		}
	}
	return status, nil
}
