package shunit

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// Environment is the set of variables the scripts run with.
type Environment map[string]string

// CollectEnvironment reads our own environment and merges the given dotenv files
// into it, later files overriding earlier ones.
func CollectEnvironment(envFiles []string) (Environment, error) {
	env := make(Environment)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		// Windows keeps per-drive directories in variables named "=C:" and so on
		if !ok || name == "" {
			continue
		}
		env[name] = value
	}

	for _, file := range envFiles {
		vars, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		maps.Copy(env, vars)
	}
	return env, nil
}

// List returns the environment as NAME=value pairs sorted by name.
func (e Environment) List() []string {
	list := make([]string, 0, len(e))
	for _, name := range slices.Sorted(maps.Keys(e)) {
		list = append(list, name+"="+e[name])
	}
	return list
}
