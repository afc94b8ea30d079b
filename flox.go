package flox

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nickryand/flox/internal/config"
	"github.com/nickryand/flox/pkg/errors"
	"github.com/nickryand/flox/pkg/floxmeta"
	"github.com/nickryand/flox/pkg/git"
	"github.com/nickryand/flox/pkg/logger"
)

const (
	// clientUUIDFile stores the per-installation client UUID inside DataDir
	clientUUIDFile = "metrics-uuid"

	// floxHubTokenFile stores the floxhub token inside ConfigDir
	floxHubTokenFile = "floxhub-token"

	// floxmetaDirName is the directory under CacheDir holding floxmeta clones
	floxmetaDirName = "meta"
)

// Flox is the process context for the SDK. It owns the resolved
// directories, the session temporary directory, the per-installation client
// UUID, and the floxhub credentials.
type Flox struct {
	// CacheDir holds floxmeta clones and other regenerable state
	CacheDir string

	// DataDir holds durable per-installation state such as the client UUID
	DataDir string

	// ConfigDir holds user-editable configuration and credentials
	ConfigDir string

	// TempDir is a session-scoped scratch directory, removed by Close
	TempDir string

	// FloxHubURL is the base URL floxmeta repositories are cloned from
	FloxHubURL string

	// ClientUUID identifies this installation
	ClientUUID uuid.UUID

	// FloxHubToken authenticates against floxhub; empty when unavailable
	FloxHubToken string

	// DisableMetrics disables metrics collection for this process
	DisableMetrics bool

	logger logger.Logger
}

// NewDefault creates a Flox context from the default configuration layers:
// built-in defaults, the YAML config file, and FLOX_* environment variables.
func NewDefault() (*Flox, error) {
	cfg := config.New()

	// Resolve the environment first so an overridden config dir decides
	// where the config file is read from; then re-apply the environment so
	// it wins over file values.
	cfg.LoadFromEnvironment()
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromFile(cfg.ConfigFile()); err != nil {
		return nil, err
	}
	cfg.LoadFromEnvironment()
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.Debug, cfg.LogFile, cfg.Verbose)
	return New(cfg, log)
}

// New creates a Flox context from a finalized configuration.
//
// It ensures the configured directories exist, provisions the session
// temporary directory, initializes (or reads back) the persisted client
// UUID, and loads the floxhub token. A missing or unreadable token is
// tolerated: it is logged and substituted with an empty default. No other
// failure is tolerated.
func New(cfg *config.Config, log logger.Logger) (*Flox, error) {
	for _, dir := range []string{cfg.CacheDir, cfg.DataDir, cfg.ConfigDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	tempDir, err := os.MkdirTemp("", "flox-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session temp directory")
	}

	clientUUID, err := initClientUUID(filepath.Join(cfg.DataDir, clientUUIDFile))
	if err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, err
	}

	f := &Flox{
		CacheDir:       cfg.CacheDir,
		DataDir:        cfg.DataDir,
		ConfigDir:      cfg.ConfigDir,
		TempDir:        tempDir,
		FloxHubURL:     cfg.FloxHubURL,
		ClientUUID:     clientUUID,
		DisableMetrics: cfg.DisableMetrics,
		logger:         log,
	}

	token, err := os.ReadFile(filepath.Join(cfg.ConfigDir, floxHubTokenFile))
	if err != nil {
		log.Warning("could not read floxhub token: %v, continuing without one", err)
	} else {
		f.FloxHubToken = strings.TrimSpace(string(token))
	}

	return f, nil
}

// Floxmeta returns a read-only handle to owner's floxmeta repository,
// cloning it from floxhub when no local copy exists yet.
func (f *Flox) Floxmeta(ctx context.Context, owner string) (*floxmeta.Floxmeta, error) {
	dir := filepath.Join(f.CacheDir, floxmetaDirName, owner)

	var provider *git.CommandProvider
	var err error
	if git.IsRepository(dir) {
		provider, err = git.Open(dir)
	} else {
		provider, err = git.Clone(ctx, f.floxmetaOrigin(owner), dir)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open floxmeta repository for %s", owner)
	}

	f.logger.Info("opened floxmeta repository for %s", owner)
	return floxmeta.Open(owner, provider), nil
}

// floxmetaOrigin returns the clone URL of owner's floxmeta repository.
func (f *Flox) floxmetaOrigin(owner string) string {
	return strings.TrimSuffix(f.FloxHubURL, "/") + "/" + owner + "/floxmeta"
}

// Close releases the session resources held by the context.
func (f *Flox) Close() error {
	return os.RemoveAll(f.TempDir)
}

// initClientUUID reads the persisted client UUID, creating and persisting a
// fresh one on first use. The UUID identifies the installation, so it must
// survive across processes; a present but unparsable file is an error, not
// a reason to regenerate.
func initClientUUID(path string) (uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		parsed, parseErr := uuid.Parse(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return uuid.Nil, errors.Wrapf(parseErr, "invalid client UUID in %s", path)
		}
		return parsed, nil
	}
	if !os.IsNotExist(err) {
		return uuid.Nil, errors.Wrapf(err, "failed to read client UUID from %s", path)
	}

	fresh := uuid.New()
	if err := os.WriteFile(path, []byte(fresh.String()+"\n"), 0644); err != nil {
		return uuid.Nil, errors.Wrapf(err, "failed to persist client UUID to %s", path)
	}
	return fresh, nil
}
