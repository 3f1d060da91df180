package domain

import (
	"fmt"
	"strings"
)

// Provider identifies the cloud or platform family a service belongs to.
type Provider string

const (
	ProviderAWS        Provider = "aws"
	ProviderGCP        Provider = "gcp"
	ProviderAzure      Provider = "azure"
	ProviderKubernetes Provider = "kubernetes"
)

// ParseProvider maps a provider hint to a Provider. The empty string is
// accepted and yields the empty Provider, meaning "use the format default".
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "aws", "amazon":
		return ProviderAWS, nil
	case "gcp", "google":
		return ProviderGCP, nil
	case "azure", "microsoft":
		return ProviderAzure, nil
	case "kubernetes", "k8s":
		return ProviderKubernetes, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Or returns p, or fallback when p is empty.
func (p Provider) Or(fallback Provider) Provider {
	if p == "" {
		return fallback
	}
	return p
}
