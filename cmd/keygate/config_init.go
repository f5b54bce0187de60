package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default config file",
	Long:  `Generate a default keygate configuration file at ~/.config/keygate/config.yaml`,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringP("output", "o", "", "output path (default: ~/.config/keygate/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")
}

// runConfigInit creates a default configuration file at the provided output
// path or, if none is provided, at ~/.config/keygate/config.yaml. Parent
// directories are created as needed (permissions 0750) and the file is
// written with permissions 0600.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}

	if output == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		output = filepath.Join(home, ".config", "keygate", defaultConfigFile)
	}

	// Check if file exists
	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", output)
	}

	// Create directory if needed
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(output, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("✓ Config file created at %s\n", output)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set KEYGATE_ADMIN_KEY to your gateway admin key")
	fmt.Println("  2. Edit the config file to set the gateway base URL")
	fmt.Println("  3. Validate with: keygate config validate")
	fmt.Println("  4. Start the server: keygate serve")

	return nil
}

const defaultConfigTemplate = `# keygate configuration
server:
  listen: ":8180"
  # Externally reachable base URL, used in magic links and the OAuth
  # callback. Required when mail or GitHub OAuth is enabled.
  # public_base_url: https://auth.example.com
  timeout_ms: 30000
  max_body_bytes: 1048576
  enable_http2: false
  # Origins allowed to call the auth API from a browser. Empty means
  # same-origin only.
  # cors_allowed_origins:
  #   - https://app.example.com

gateway:
  # Admin API of the downstream LLM gateway.
  base_url: http://127.0.0.1:4000
  # Privileged admin key. ${VAR} values are expanded from the environment.
  admin_key: ${KEYGATE_ADMIN_KEY}
  timeout_ms: 10000
  # Spend cap per issued key. Zero means no cap.
  key_max_budget: 0
  key_budget_duration: 30d
  # Restrict issued keys to these models. Empty means all models.
  # key_models:
  #   - claude-sonnet

store:
  # memory for a single instance; embedded runs an Olric node in-process,
  # cluster connects to an external Olric cluster.
  mode: memory
  # olric:
  #   bind_addr: 0.0.0.0:3320
  #   peers:
  #     - keygate-1:3320
  #   addresses:
  #     - olric-1:3320

auth:
  account_prefix: kg-
  session_ttl_minutes: 1440
  magic_link_ttl_minutes: 15
  cookie:
    name: keygate_session
    secure: true
  # Trusted proxy headers carrying the internal identity, checked in order.
  # email_headers:
  #   - X-Auth-Request-Email
  #   - X-Email

# oauth:
#   github:
#     client_id: your-client-id
#     client_secret: ${GITHUB_CLIENT_SECRET}

# mail:
#   host: smtp.example.com
#   port: 587
#   username: keygate
#   password: ${SMTP_PASSWORD}
#   from: keygate@example.com
#   rate_per_minute: 60

rate_limit:
  enabled: true
  # Per-action overrides; unknown actions use the default rule.
  # rules:
  #   login:
  #     limit: 5
  #     window_seconds: 60
  # Per-instance surge guard. Zero disables it.
  local_rps: 0
  local_burst: 0

logging:
  level: info
  format: json
  output: stdout

health:
  health_check:
    enabled: true
    interval_ms: 30000
  circuit_breaker:
    failure_threshold: 5
    open_duration_ms: 60000
    half_open_probes: 1
`
