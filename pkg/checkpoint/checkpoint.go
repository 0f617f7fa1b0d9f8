package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/models"
)

// CurrentVersion is the checkpoint file format version
const CurrentVersion = 1

// Checkpoint is the catalog of one run, saved after traversal so the
// organizer can be re-run without scraping the portal again
type Checkpoint struct {
	Version          int             `json:"version"`
	RunID            string          `json:"run_id"`
	Account          string          `json:"account"`
	BaseURL          string          `json:"base_url"`
	StagingDirectory string          `json:"staging_directory"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Catalog          *models.Catalog `json:"catalog"`
}

// New creates a checkpoint for a fresh run
func New(account, baseURL, stagingDir string, catalog *models.Catalog) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		Version:          CurrentVersion,
		RunID:            uuid.NewString(),
		Account:          account,
		BaseURL:          baseURL,
		StagingDirectory: stagingDir,
		CreatedAt:        now,
		UpdatedAt:        now,
		Catalog:          catalog,
	}
}

// Manager handles checkpoint operations
type Manager struct {
	fs             afero.Fs
	checkpointPath string
	logger         logger.Logger
}

var unsafeAccountChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewManager creates a manager storing the account's checkpoint under the
// user data directory
func NewManager(fs afero.Fs, account string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	name := unsafeAccountChars.ReplaceAllString(account, "_")
	path := filepath.Join(dataDir, "catalogs", fmt.Sprintf("%s.catalog.json", name))
	return NewManagerAt(fs, path, log), nil
}

// NewManagerAt creates a manager for an explicit checkpoint path
func NewManagerAt(fs afero.Fs, path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{fs: fs, checkpointPath: path, logger: log}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load loads an existing checkpoint; it returns nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := afero.ReadFile(m.fs, m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.Catalog == nil {
		cp.Catalog = models.NewCatalog()
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     cp.RunID,
		"account":    cp.Account,
		"entries":    cp.Catalog.Len(),
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes the checkpoint atomically through a temporary file
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := m.fs.MkdirAll(filepath.Dir(m.checkpointPath), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	if err := afero.WriteFile(m.fs, tempPath, data, 0644); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to write temporary checkpoint file: %w", err)
	}

	if err := m.fs.Rename(tempPath, m.checkpointPath); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":  cp.RunID,
		"entries": cp.Catalog.Len(),
		"path":    m.checkpointPath,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := m.fs.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	ok, err := afero.Exists(m.fs, m.checkpointPath)
	return err == nil && ok
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "moodlescraper"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "moodlescraper"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "moodlescraper"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "moodlescraper"), nil
		}
		return filepath.Join(home, ".local", "share", "moodlescraper"), nil
	}
}
