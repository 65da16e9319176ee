package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the orbvoice directory layout under the
// user's home directory.
type Paths struct {
	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance.
func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns the base orbvoice directory (~/.orbvoice)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// ConfigFile returns the config file path (~/.orbvoice/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// DataDir returns the local data directory (~/.orbvoice/data), home of
// the narration history store.
func (p *Paths) DataDir() string {
	return filepath.Join(p.BaseDir(), "data")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0755)
}

// DataPath returns a path within the data directory
func (p *Paths) DataPath(name string) string {
	return filepath.Join(p.DataDir(), name)
}
