package completion

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewProvider builds the named provider. httpTimeout bounds the transport of
// the OpenAI-compatible provider; zero means no transport timeout.
func NewProvider(name, baseURL, apiKey string, httpTimeout time.Duration) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("completion api key is required")
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderOpenAI:
		return NewOpenAI(baseURL, apiKey, WithHTTPClient(&http.Client{Timeout: httpTimeout})), nil
	case ProviderAnthropic:
		return NewAnthropic(apiKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", name)
	}
}
