// Package credentials stores summarizer API keys in credentials.toml inside
// the .dragon/ directory, apart from config.toml so the config can be shared.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bochendong/dragon-continue/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// envVars maps keyed providers to the environment variable their SDKs read.
var envVars = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Keyring reads and writes credentials.toml.
type Keyring struct {
	path string
}

// Open resolves credentials.toml in the override directory or the standard
// .dragon/ location. The file itself is created on first write.
func Open(override string) (*Keyring, error) {
	path, err := dotdir.NewManager().File(override, credentialsFile)
	if err != nil {
		return nil, err
	}
	return &Keyring{path: path}, nil
}

// Path returns the resolved credentials file path.
func (k *Keyring) Path() string {
	return k.path
}

func (k *Keyring) load() (*keyFile, error) {
	data, err := os.ReadFile(k.path)
	if errors.Is(err, os.ErrNotExist) {
		return &keyFile{Version: currentVersion, Keys: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	f := &keyFile{}
	if err := toml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if f.Keys == nil {
		f.Keys = map[string]Entry{}
	}
	return f, nil
}

func (k *Keyring) save(f *keyFile) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.WriteFile(k.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// Set stores key for provider, replacing any previous key.
func (k *Keyring) Set(provider, key string) error {
	if !IsKeyedProvider(provider) {
		return fmt.Errorf("provider %q does not use an API key", provider)
	}
	f, err := k.load()
	if err != nil {
		return err
	}
	f.Keys[provider] = Entry{APIKey: key, SavedAt: time.Now().UTC()}
	return k.save(f)
}

// Get returns the stored key for provider, or "" when none is stored.
func (k *Keyring) Get(provider string) (string, error) {
	f, err := k.load()
	if err != nil {
		return "", err
	}
	return f.Keys[provider].APIKey, nil
}

// Remove deletes the key for provider. Removing a missing key is not an error.
func (k *Keyring) Remove(provider string) error {
	f, err := k.load()
	if err != nil {
		return err
	}
	if _, ok := f.Keys[provider]; !ok {
		return nil
	}
	delete(f.Keys, provider)
	return k.save(f)
}

// Entries returns stored keys by provider, with provider names sorted.
func (k *Keyring) Entries() ([]string, map[string]Entry, error) {
	f, err := k.load()
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(f.Keys))
	for name := range f.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, f.Keys, nil
}

// Resolve picks the API key for provider: an explicit key wins, then the
// provider's environment variable, then the keyring. A nil keyring is
// skipped.
func Resolve(explicit, provider string, k *Keyring) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := EnvVar(provider); env != "" && os.Getenv(env) != "" {
		return os.Getenv(env), nil
	}
	if k == nil || !IsKeyedProvider(provider) {
		return "", nil
	}
	return k.Get(provider)
}

// EnvVar returns the environment variable for provider, or "".
func EnvVar(provider string) string {
	return envVars[provider]
}

// KeyedProviders returns the summarizer providers that need an API key.
func KeyedProviders() []string {
	return []string{"anthropic", "openai"}
}

// IsKeyedProvider reports whether provider needs an API key.
func IsKeyedProvider(provider string) bool {
	return slices.Contains(KeyedProviders(), provider)
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
