// Package secrets supplies the generative-AI API credential.
//
// The contract is deliberately narrow: a provider returns the key or an empty
// string. An empty key is not an error here; the request fails server-side and
// surfaces through the client's ordinary failure path.
package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hpungsan/aireach/internal/logging"
)

// CredentialKey is the key looked up in secrets files and (upper-cased) in the environment.
const CredentialKey = "gemini_api_key"

// EnvPrefix limits which environment variables are consulted (GEMINI_API_KEY).
const EnvPrefix = "GEMINI_"

// secretFiles are tried in order inside the base directory. YAML is a superset
// of JSON, so one parser handles both.
var secretFiles = []string{"secrets.json", "secrets.yaml", "secrets.yml"}

// Provider returns an API credential, or "" when none is available.
type Provider interface {
	Credential() string
}

// Static is a fixed credential, used for flags and tests.
type Static string

// Credential implements Provider.
func (s Static) Credential() string { return strings.TrimSpace(string(s)) }

// FileProvider reads the credential from a secrets file in baseDir, with the
// GEMINI_API_KEY environment variable taking precedence.
type FileProvider struct {
	baseDir  string
	warnOnce sync.Once
}

// NewFileProvider creates a provider rooted at baseDir (typically ~/.aireach).
func NewFileProvider(baseDir string) *FileProvider {
	return &FileProvider{baseDir: baseDir}
}

// Credential implements Provider. It reloads on every call so a key added
// while the MCP server is running is picked up without a restart.
func (p *FileProvider) Credential() string {
	k := koanf.New(".")

	if path := p.findSecretsFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			logging.Debug().Err(err).Str("path", path).Msg("secrets file unreadable")
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		logging.Debug().Err(err).Msg("secrets env load failed")
	}

	key := strings.TrimSpace(k.String(CredentialKey))
	if key == "" {
		p.warnOnce.Do(func() {
			logging.Warn().Str("dir", p.baseDir).Msg("no gemini_api_key configured; model requests will fail")
		})
	}
	return key
}

func (p *FileProvider) findSecretsFile() string {
	for _, name := range secretFiles {
		path := filepath.Join(p.baseDir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
