package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/filetree/internal/app"
	"github.com/justyntemme/filetree/internal/config"
	"github.com/justyntemme/filetree/internal/debug"
	"github.com/justyntemme/filetree/internal/events"
	"github.com/justyntemme/filetree/internal/metrics"
	"github.com/justyntemme/filetree/internal/store"
	"github.com/justyntemme/filetree/internal/tree"
)

const waitTimeout = 30 * time.Second

type globalFlags struct {
	configPath  string
	dbPath      string
	metricsAddr string
	natsURL     string
	noCompact   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "filetree",
		Short: "Browse a directory as a lazily expanding tree",
		Long: `filetree lists a folder one level at a time, expanding single-directory
chains in one step, and remembers which folders were expanded so the next
session opens the same way.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default ~/.config/filetree/config.json)")
	pf.StringVar(&g.dbPath, "db", "", "session database (default from config)")
	pf.StringVar(&g.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.StringVar(&g.natsURL, "nats-url", "", "publish root changes to this NATS server")
	pf.BoolVar(&g.noCompact, "no-compact", false, "do not expand single-directory chains in one step")

	root.AddCommand(
		newLsCmd(g),
		newOpenCmd(g),
		newRefreshCmd(g),
		newCloseCmd(g),
		newStateCmd(g),
		newConfigCmd(g),
	)
	return root
}

// session is one CLI invocation's wiring: config, the session database and
// a running tree manager.
type session struct {
	cfg     config.Config
	db      *store.DB
	mgr     *app.Manager
	bus     *events.Bus
	nats    *events.NATSPublisher
	metrics *http.Server

	unsubscribe func()
	logged      chan struct{}

	cancel  context.CancelFunc
	stopped chan error
}

func (g *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cm := config.NewManager(g.configPath)
	if err := cm.Load(); err != nil {
		return config.Config{}, err
	}
	if perr := cm.ParseError(); perr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %v (using defaults)\n", cm.Path(), perr)
	}
	cfg := cm.Get()
	if g.dbPath != "" {
		cfg.Store.Path = g.dbPath
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = config.DefaultDBPath()
	}
	if g.metricsAddr != "" {
		cfg.Metrics.Addr = g.metricsAddr
	}
	if g.natsURL != "" {
		cfg.Events.NATSURL = g.natsURL
	}
	if g.noCompact {
		cfg.Tree.CompactChains = false
	}
	return cfg, nil
}

func (g *globalFlags) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	db, err := openDB(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, db: db}

	var sink events.Sink
	if cfg.Events.NATSURL != "" {
		p, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.nats = p
		sink = p
	}

	s.bus = events.NewBus()
	evs, unsubscribe := s.bus.Subscribe(16)
	s.unsubscribe = unsubscribe
	s.logged = make(chan struct{})
	go func() {
		defer close(s.logged)
		for ev := range evs {
			debug.Log(debug.EVENT, "root changed: %q tree=%s", ev.Root, ev.TreeID)
		}
	}()

	if cfg.Metrics.Addr != "" {
		s.metrics = metrics.StartMetricsServer(cfg.Metrics.Addr)
	}

	stderr := cmd.ErrOrStderr()
	s.mgr = app.New(app.Options{
		Workers:       cfg.FS.Workers,
		List:          cfg.FSOptions(),
		CompactChains: cfg.Tree.CompactChains,
		AutoOpenLast:  cfg.Tree.AutoOpenLast,
		Prefs:         db,
		Events:        events.Multi(s.bus, sink),
		Errors: app.ErrorReporterFunc(func(msg string, err error) {
			fmt.Fprintf(stderr, "error: %s: %v\n", msg, err)
		}),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	s.cancel = cancel
	s.stopped = make(chan error, 1)
	go func() { s.stopped <- s.mgr.Run(ctx) }()
	return s, nil
}

func openDB(path string) (*store.DB, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return db, nil
}

func (s *session) close() error {
	s.cancel()
	err := <-s.stopped
	s.unsubscribe()
	<-s.logged
	if s.nats != nil {
		s.nats.Close()
	}
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		s.metrics.Shutdown(ctx)
		cancel()
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *session) wait(cmd *cobra.Command, t *tree.Task) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
	defer cancel()
	return t.Wait(ctx)
}

// save records the expansion state of the open root.
func (s *session) save() error {
	root := s.mgr.RootPath()
	if root == "" {
		return nil
	}
	return s.db.SaveTreeState(root, s.mgr.SessionState())
}

// openRoot opens root with the state saved for it last time.
func (s *session) openRoot(cmd *cobra.Command, root string) error {
	state, err := s.db.TreeState(root)
	if err != nil {
		return err
	}
	if err := s.mgr.SetSessionState(state); err != nil {
		return err
	}
	return s.wait(cmd, s.mgr.Open(root))
}

func (s *session) print(cmd *cobra.Command) error {
	v, err := s.mgr.View()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), v.String())
	return nil
}
