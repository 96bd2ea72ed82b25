package cas

import "fmt"

// Backend selects a CAS implementation.
type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendFile      Backend = "file"
	BackendOCILayout Backend = "oci-layout"
)

// Config is the closed configuration struct for constructing a Store.
type Config struct {
	Backend   Backend
	BasePath  string // required for File and OCILayout backends
	MaxBytes  int64  // 0 = unbounded; enforced by callers wrapping Store, not by backends themselves
}

// New constructs the Store described by cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		if cfg.BasePath == "" {
			return nil, fmt.Errorf("cas: file backend requires BasePath")
		}
		return NewFileStore(cfg.BasePath)
	case BackendOCILayout:
		if cfg.BasePath == "" {
			return nil, fmt.Errorf("cas: oci-layout backend requires BasePath")
		}
		return NewOCILayoutStore(cfg.BasePath)
	default:
		return nil, fmt.Errorf("cas: unknown backend %q", cfg.Backend)
	}
}
