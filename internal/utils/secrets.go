package utils

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret reads a secret from the standard Docker Secrets path.
// No env-var fallback, so behavior stays consistent across environments.
func ReadSecret(secretName string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", filePath, err)
	}
	secret := strings.TrimSpace(string(secretBytes))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", filePath)
	}
	return secret, nil
}

// ReadSecretOrEnv prefers the Docker secret but falls back to an environment
// variable for local development without a secrets mount.
func ReadSecretOrEnv(secretName, envName string) (string, error) {
	if secret, err := ReadSecret(secretName); err == nil {
		return secret, nil
	}
	if value := strings.TrimSpace(os.Getenv(envName)); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found and %s is not set", secretName, envName)
}
