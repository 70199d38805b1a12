package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env from the working directory or the project root.
// Variables already present in the environment win.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load(".env")
			return
		}
		if root, err := ProjectRoot(); err == nil {
			path := filepath.Join(root, ".env")
			if _, err := os.Stat(path); err == nil {
				_ = godotenv.Load(path)
			}
		}
	})
}

// ProjectRoot walks up from the working directory to the nearest go.mod.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("confkit: go.mod not found above working directory")
		}
		dir = parent
	}
}

// MustProjectPath resolves rel against the project root and panics if the
// root cannot be found.
func MustProjectPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	root, err := ProjectRoot()
	if err != nil {
		panic(err)
	}
	return filepath.Join(root, rel)
}
