// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sigil-dev/chroma-go/internal/config"
	"github.com/sigil-dev/chroma-go/internal/secrets"
	"github.com/sigil-dev/chroma-go/pkg/chroma"
	"github.com/sigil-dev/chroma-go/pkg/embedding/google"
	"github.com/sigil-dev/chroma-go/pkg/embedding/openai"
	chromaerr "github.com/sigil-dev/chroma-go/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCheckTimeout bounds the wizard's server reachability check.
var initCheckTimeout = 5 * time.Second

type initWizardStep int

const (
	stepEndpoint initWizardStep = iota
	stepCheckServer
	stepToken
	stepProvider
	stepAPIKey
	stepDone
	stepError
)

const providerNone = "none"

var supportedProviders = []string{providerNone, "openai", "google"}

// initResult holds what the wizard collected.
type initResult struct {
	Endpoint string
	Token    string
	Provider string
	APIKey   string
}

type (
	serverCheckedMsg struct{ version string }
	serverFailedMsg  struct{ err error }
	configWrittenMsg struct{ path string }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type initModel struct {
	step          initWizardStep
	endpointInput textinput.Model
	tokenInput    textinput.Model
	apiKeyInput   textinput.Model
	spinner       spinner.Model
	providerIdx   int
	result        initResult
	serverVersion string
	validationErr string
	configPath    string
	secretStore   secrets.Store
	errFinal      error
	skipCheck     bool
	force         bool
}

func newInitModel(store secrets.Store) initModel {
	endpoint := textinput.New()
	endpoint.Placeholder = chroma.DefaultEndpoint
	endpoint.SetValue(chroma.DefaultEndpoint)
	endpoint.Focus()

	token := textinput.New()
	token.Placeholder = "leave empty for no auth"
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '•'

	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:          stepEndpoint,
		endpointInput: endpoint,
		tokenInput:    token,
		apiKeyInput:   apiKey,
		spinner:       sp,
		secretStore:   store,
	}
}

func (m initModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case serverCheckedMsg:
		m.serverVersion = msg.version
		m.step = stepToken
		m.tokenInput.Focus()
		return m, textinput.Blink

	case serverFailedMsg:
		m.validationErr = msg.err.Error()
		m.step = stepEndpoint
		m.endpointInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.step {
	case stepEndpoint:
		return m.handleEndpointKey(msg)
	case stepToken:
		return m.handleTokenKey(msg)
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyKey(msg)
	}
	return m, nil
}

func (m initModel) handleEndpointKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.endpointInput, cmd = m.endpointInput.Update(msg)
		return m, cmd
	}

	u, err := chroma.ParseEndpoint(m.endpointInput.Value())
	if err != nil {
		m.validationErr = err.Error()
		return m, nil
	}
	m.result.Endpoint = u.String()
	m.validationErr = ""
	m.endpointInput.Blur()

	if m.skipCheck {
		m.step = stepToken
		m.tokenInput.Focus()
		return m, textinput.Blink
	}
	m.step = stepCheckServer
	return m, tea.Batch(m.spinner.Tick, checkServerCmd(m.result.Endpoint))
}

func (m initModel) handleTokenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.tokenInput, cmd = m.tokenInput.Update(msg)
		return m, cmd
	}
	m.result.Token = strings.TrimSpace(m.tokenInput.Value())
	m.tokenInput.Blur()
	m.step = stepProvider
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		if m.result.Provider == providerNone {
			m.result.Provider = ""
			return m, writeConfigCmd(m.result, m.secretStore, m.force)
		}
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "enter" {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	key := strings.TrimSpace(m.apiKeyInput.Value())
	if key == "" {
		m.validationErr = "API key must not be empty"
		return m, nil
	}
	m.result.APIKey = key
	m.validationErr = ""
	return m, writeConfigCmd(m.result, m.secretStore, m.force)
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.step {
	case stepEndpoint:
		m.endpointInput, cmd = m.endpointInput.Update(msg)
	case stepToken:
		m.tokenInput, cmd = m.tokenInput.Update(msg)
	case stepAPIKey:
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	}
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  chromactl setup  ") + "\n\n")

	switch m.step {
	case stepEndpoint:
		b.WriteString(promptStyle.Render("Step 1/3: Chroma server URL") + "\n\n")
		b.WriteString(m.endpointInput.View() + "\n")
		m.writeValidation(&b)
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepCheckServer:
		b.WriteString(m.spinner.View() + " Contacting " + m.result.Endpoint + "…\n")

	case stepToken:
		if m.serverVersion != "" {
			b.WriteString(successStyle.Render("Connected to chroma "+m.serverVersion) + "\n\n")
		}
		b.WriteString(promptStyle.Render("Step 2/3: Auth token (optional)") + "\n\n")
		b.WriteString(m.tokenInput.View() + "\n")
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepProvider:
		b.WriteString(promptStyle.Render("Step 3/3: Embedding provider for document text") + "\n\n")
		for i, p := range supportedProviders {
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+p) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+p) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 3/3: "+m.result.Provider+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		m.writeValidation(&b)
		b.WriteString("\n" + dimStyle.Render("enter to finish  ctrl+c to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("chromactl heartbeat") + " to check the connection.\n")
		b.WriteString("Run " + promptStyle.Render("chromactl doctor") + " to verify setup.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func (m initModel) writeValidation(b *strings.Builder) {
	if m.validationErr != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
	}
}

func checkServerCmd(endpoint string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), initCheckTimeout)
		defer cancel()

		client, err := chroma.Connect(ctx, endpoint, chroma.WithRetry(1, time.Millisecond, time.Millisecond))
		if err != nil {
			return serverFailedMsg{err: err}
		}
		defer func() { _ = client.Close() }()

		ver, err := client.Version(ctx)
		if err != nil {
			return serverFailedMsg{err: err}
		}
		return serverCheckedMsg{version: ver}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, force bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretsAndWriteConfig(result, store, force)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// generatedConfig is the subset of config.Config that init writes.
type generatedConfig struct {
	Client struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		SSL      bool   `yaml:"ssl"`
		Tenant   string `yaml:"tenant"`
		Database string `yaml:"database"`
		Token    string `yaml:"token,omitempty"`
	} `yaml:"client"`
	Embedding struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model,omitempty"`
		APIKey   string `yaml:"api_key,omitempty"`
	} `yaml:"embedding"`
	Emulator struct {
		Listen  string `yaml:"listen"`
		Backend string `yaml:"backend"`
	} `yaml:"emulator"`
}

const tokenSecretName = "token"

func apiKeySecretName(provider string) string { return provider + "-api-key" }

// GenerateConfigYAML renders the config for result. Credentials are written
// as keyring references; the values themselves go to the keyring.
func GenerateConfigYAML(result initResult) (string, error) {
	u, err := chroma.ParseEndpoint(result.Endpoint)
	if err != nil {
		return "", err
	}
	port := 8000
	if p := u.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	} else if u.Scheme == "https" {
		port = 443
	}

	var gc generatedConfig
	gc.Client.Host = u.Hostname()
	gc.Client.Port = port
	gc.Client.SSL = u.Scheme == "https"
	gc.Client.Tenant = chroma.DefaultTenant
	gc.Client.Database = chroma.DefaultDatabase
	if result.Token != "" {
		gc.Client.Token = secrets.Ref{Service: secrets.DefaultService, Key: tokenSecretName}.String()
	}
	gc.Embedding.Provider = result.Provider
	if result.Provider != "" {
		gc.Embedding.Model = defaultModelForProvider(result.Provider)
		gc.Embedding.APIKey = secrets.Ref{Service: secrets.DefaultService, Key: apiKeySecretName(result.Provider)}.String()
	}
	gc.Emulator.Listen = "127.0.0.1:8000"
	gc.Emulator.Backend = "memory"

	out, err := yaml.Marshal(gc)
	if err != nil {
		return "", chromaerr.Errorf(chromaerr.CodeCLISetupFailure, "encoding config: %w", err)
	}
	return "# chromactl configuration, generated by chromactl init\n\n" + string(out), nil
}

func defaultModelForProvider(p string) string {
	switch p {
	case "openai":
		return openai.DefaultModel
	case "google":
		return google.DefaultModel
	default:
		return ""
	}
}

// storeSecretsAndWriteConfig saves credentials to store and writes the config
// to configPathForWrite. Secrets stored before a failed write are not rolled
// back; a rerun overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, force bool) (string, error) {
	if result.Token != "" {
		if err := store.Store(secrets.DefaultService, tokenSecretName, result.Token); err != nil {
			return "", chromaerr.Wrapf(err, chromaerr.CodeSecretStoreFailure, "storing server token")
		}
	}
	if result.Provider != "" && result.APIKey != "" {
		if err := store.Store(secrets.DefaultService, apiKeySecretName(result.Provider), result.APIKey); err != nil {
			return "", chromaerr.Wrapf(err, chromaerr.CodeSecretStoreFailure, "storing %s API key", result.Provider)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if !force {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", chromaerr.Errorf(chromaerr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	content, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		return "", chromaerr.Errorf(chromaerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}
	return cfgPath, nil
}

// configPathForWrite is a variable so tests can redirect it.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Walk through connecting to a Chroma server and choosing an embedding
provider, then write ~/.config/chroma/chroma.yaml.

Tokens and API keys are stored in the OS keyring and referenced from the
config as keyring:// URIs. No secrets are written in plain text.

Use --defaults to write the commented default config without prompting.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	cmd.Flags().Bool("skip-check", false, "do not contact the server before writing config")
	cmd.Flags().Bool("defaults", false, "write the default config non-interactively")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	skipCheck, _ := cmd.Flags().GetBool("skip-check")

	if defaults, _ := cmd.Flags().GetBool("defaults"); defaults {
		path, err := configPathForWrite()
		if err != nil {
			return err
		}
		if err := config.WriteDefault(path, force); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written to: %s\n", path)
		return err
	}

	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"chromactl init requires an interactive terminal.\n"+
				"Use 'chromactl init --defaults' and edit ~/.config/chroma/chroma.yaml instead.")
		return chromaerr.New(chromaerr.CodeCLISetupFailure, "chromactl init: not an interactive terminal")
	}

	m := newInitModel(secretStoreFactory())
	m.skipCheck = skipCheck
	m.force = force

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return chromaerr.Errorf(chromaerr.CodeCLISetupFailure, "init wizard error: %w", err)
	}
	fm, ok := finalModel.(initModel)
	if !ok {
		return chromaerr.New(chromaerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return chromaerr.Errorf(chromaerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to: %s\n", fm.configPath)
	}
	return nil
}
