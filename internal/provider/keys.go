package provider

import "os"

// KeyStore resolves provider API keys. Adapter construction fails when the
// key is absent or inactive.
type KeyStore interface {
	Key(provider string) (key string, active bool)
}

// EnvKeyStore reads provider keys from environment variables.
type EnvKeyStore struct{}

var envVarByProvider = map[string]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGoogle: "GOOGLE_API_KEY",
	ProviderFlux:   "FLUX_API_KEY",
}

func (EnvKeyStore) Key(provider string) (string, bool) {
	envVar, ok := envVarByProvider[provider]
	if !ok {
		return "", false
	}
	key := os.Getenv(envVar)
	return key, key != ""
}
