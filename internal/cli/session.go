package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"hostkit/internal/config"
	"hostkit/internal/fetch"
	"hostkit/internal/logx"
	"hostkit/internal/manifest"
	"hostkit/internal/paths"
	"hostkit/internal/proc"
	"hostkit/internal/provision"
)

// session bundles what every command needs: effective configuration, the
// on-disk layout and a logger.
type session struct {
	cfg    config.Config
	layout paths.Layout
	logger *zap.Logger
	closer io.Closer
}

// openSession loads configuration, applies flag overrides and opens the log
// file. console receives human-readable log lines; nil keeps the console
// quiet.
func openSession(console io.Writer) (*session, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if installDir != "" {
		cfg.InstallDir = installDir
	}
	if logsDir != "" {
		cfg.LogsDir = logsDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layout, err := paths.Resolve(cfg.InstallDir)
	if err != nil {
		return nil, err
	}
	logDir, err := paths.ExpandHome(cfg.LogsDir)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logx.New(logDir, console, verbose)
	if err != nil {
		// An unwritable state directory only costs the log file.
		if console != nil {
			logger = logx.Console(console, verbose)
		} else {
			logger = logx.Nop()
		}
		closer = nopCloser{}
		logger.Warn("file logging disabled", zap.String("dir", logDir), zap.Error(err))
	}
	logger.Debug("session opened", zap.String("config", path), zap.String("install_dir", layout.Root))
	return &session{cfg: cfg, layout: layout, logger: logger, closer: closer}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func (s *session) Close() {
	_ = s.logger.Sync()
	_ = s.closer.Close()
}

// manifestPath resolves override against the working directory, or the
// configured manifest against the install root.
func (s *session) manifestPath(override string) (string, error) {
	if override != "" {
		expanded, err := paths.ExpandHome(override)
		if err != nil {
			return "", err
		}
		return filepath.Abs(expanded)
	}
	return s.layout.ResolveFile(s.cfg.Manifest), nil
}

func (s *session) loadManifest(override string) (manifest.Manifest, error) {
	path, err := s.manifestPath(override)
	if err != nil {
		return manifest.Manifest{}, err
	}
	m, err := manifest.LoadFile(path, manifest.Current())
	if err != nil {
		return manifest.Manifest{}, err
	}
	s.logger.Info("manifest loaded", zap.String("path", path), zap.Int("tools", m.Len()), zap.String("platform", m.Platform().String()))
	return m, nil
}

func (s *session) runner() proc.CmdRunner {
	return proc.CmdRunner{Logger: s.logger.Named("exec"), Timeout: s.cfg.Exec.Timeout}
}

// orchestrator wires an Orchestrator from configuration. The returned
// Fetcher is the one the orchestrator uses so callers can attach progress.
func (s *session) orchestrator(m manifest.Manifest) (*provision.Orchestrator, *fetch.Fetcher) {
	fetcher := fetch.New(s.logger.Named("fetch"), s.cfg.Fetch.Timeout, s.cfg.Fetch.Attempts, s.cfg.Fetch.UserAgent)
	o := provision.New(s.layout, m, fetcher, s.runner(), s.logger)
	o.LockTimeout = s.cfg.LockTimeout
	o.BuiltinZstd = s.cfg.BuiltinZstd
	o.PyEnv = provision.PyEnv{Packages: s.cfg.PyEnv.Packages, Requirements: s.cfg.PyEnv.Requirements}
	for _, fx := range s.cfg.Fixups {
		o.Fixups = append(o.Fixups, provision.Fixup{From: fx.From, To: fx.To, Files: fx.Files})
	}
	return o, fetcher
}

// downloadBars renders one byte-counting bar per download on w.
func downloadBars(w io.Writer) func(name string, size int64) io.Writer {
	return func(name string, size int64) io.Writer {
		return progressbar.NewOptions64(
			size,
			progressbar.OptionSetDescription(fmt.Sprintf("%-28s", name)),
			progressbar.OptionSetWriter(w),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(w, "\n")
			}),
		)
	}
}
