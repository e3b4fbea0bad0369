package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named envName. When envName+"_FILE" is
// set, the secret is the trimmed content of that file and envName itself
// is ignored. An unset secret resolves to "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		// the path is reported, never the content
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
