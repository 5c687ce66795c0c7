package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"proximity-radar.klederson.com/internal/api"
	"proximity-radar.klederson.com/internal/app"
	"proximity-radar.klederson.com/internal/bluetooth"
	"proximity-radar.klederson.com/internal/config"
	"proximity-radar.klederson.com/internal/friends"
	"proximity-radar.klederson.com/internal/heading"
	"proximity-radar.klederson.com/internal/identity"
	"proximity-radar.klederson.com/internal/logging"
	"proximity-radar.klederson.com/internal/proximity"
	"proximity-radar.klederson.com/internal/store"
)

var (
	flagDemo     bool
	flagRadio    string
	flagNickname string
	flagHeading  int
	flagHeadless bool
	flagListen   string
	flagConfig   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "proximity-radar",
		Short: "Proximity radar - find people nearby running the same app",
		Long: `Proximity radar alternates between advertising a short identity frame over
Bluetooth Low Energy and scanning for the frames of others, then shows
everyone nearby on a circular ASCII radar.

Requires sudo or CAP_NET_ADMIN capability for real Bluetooth access.
Use --demo flag for demonstration mode without Bluetooth hardware.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.proximity-radar/config.toml)")
	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Run in demo mode with simulated peers (no Bluetooth required)")
	rootCmd.Flags().StringVar(&flagRadio, "radio", "", "Radio backend: tinygo or hci (overrides config)")
	rootCmd.Flags().StringVar(&flagNickname, "nickname", "", "Set and store the nickname to broadcast")
	rootCmd.Flags().IntVar(&flagHeading, "heading", -1, "Fixed compass heading in degrees (arrow keys rotate it)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "Run without the terminal UI")
	rootCmd.Flags().StringVar(&flagListen, "listen", "", "Serve the HTTP API on this address, e.g. :8080")

	rootCmd.AddCommand(identityCmd(), friendsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadSettings() (config.Settings, error) {
	path := flagConfig
	if path == "" {
		path = config.SettingsPath()
	}
	return config.LoadSettings(path)
}

func identityPath() string {
	return filepath.Join(config.Home(), "identity.toml")
}

func frameConfig(s config.Settings) proximity.FrameConfig {
	return proximity.FrameConfig{
		Tag:            config.FrameTag,
		Delimiter:      config.FrameDelimiter,
		Budget:         s.Frame.Budget,
		NicknameBudget: s.Frame.NicknameBudget,
		IDBudget:       s.Frame.IDBudget,
		ReferencePower: s.Frame.ReferencePower,
	}
}

func coordinatorConfig(s config.Settings) proximity.CoordinatorConfig {
	cfg := proximity.DefaultCoordinatorConfig()
	cfg.MaxBroadcastAttempts = s.Radio.MaxBroadcastAttempts
	cfg.RetryDelay = s.Radio.RetryDelay.Duration
	cfg.HeadingPollAttempts = s.Radio.HeadingPollAttempts
	cfg.HeadingPollInterval = s.Radio.HeadingPollInterval.Duration
	cfg.AdvertiseDuration = s.Radio.AdvertiseDuration.Duration
	cfg.AdvertiseInterval = s.Radio.AdvertiseInterval.Duration
	cfg.StepDelay = s.Radio.StepDelay.Duration
	cfg.Tx.CompanyID = s.Frame.CompanyID
	return cfg
}

type closer interface{ Close() error }

// openRadio picks the backend. The returned closer may be nil.
func openRadio(s config.Settings, codec *proximity.Codec, log *zap.Logger) (proximity.Radio, closer, error) {
	if flagDemo {
		n := config.DemoPeerMin + rand.Intn(config.DemoPeerMax-config.DemoPeerMin+1)
		return bluetooth.NewMockRadio(n, codec, s.Frame.CompanyID), nil, nil
	}
	switch s.Radio.Backend {
	case "hci":
		r, err := bluetooth.NewHCIRadio(log)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	default:
		return bluetooth.NewAdapter(log), nil, nil
	}
}

func headingSource() proximity.HeadingSource {
	switch {
	case flagHeading >= 0:
		return heading.NewStatic(flagHeading)
	case flagDemo:
		return heading.NewSimulated(0.5, time.Second)
	default:
		return heading.Unsupported{}
	}
}

func run(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if flagRadio != "" {
		settings.Radio.Backend = flagRadio
	}
	if flagListen != "" {
		settings.API.Listen = flagListen
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	logFile := settings.Logging.File
	if flagHeadless {
		logFile = ""
	}
	log, err := logging.New(settings.Logging.Level, logFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ids, err := identity.Open(identityPath(), "")
	if err != nil {
		return err
	}
	if flagNickname != "" {
		if err := ids.SetNickname(flagNickname); err != nil {
			return err
		}
	}

	db, err := store.Open(config.Home())
	if err != nil {
		return err
	}
	defer db.Close()

	fs, err := friends.Load(db)
	if err != nil {
		return err
	}

	codec := proximity.NewCodec(frameConfig(settings))
	radio, rc, err := openRadio(settings, codec, log)
	if err != nil {
		return printRadioHelp(err)
	}
	if rc != nil {
		defer rc.Close()
	}

	coord := proximity.NewCoordinator(radio, codec, proximity.NewPeerRegistry(), coordinatorConfig(settings), log)
	defer coord.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal := store.NewJournal(db, config.SightingEvery, log)
	sightings := coord.Subscribe()
	defer sightings.Close()
	go journal.Follow(ctx, sightings.Events())

	headings := headingSource()
	runner := proximity.NewRunner(coord, ids, headings, log)

	if addr := settings.API.Listen; addr != "" {
		srv := api.NewServer(coord, ids, fs, db, log).WithRestarter(runner)
		go func() {
			if err := api.ListenAndServe(ctx, addr, srv.Handler(), log); err != nil {
				log.Error("api stopped", zap.Error(err))
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- runner.Serve(ctx) }()

	if flagHeadless {
		log.Info("running headless", zap.String("backend", settings.Radio.Backend), zap.Bool("demo", flagDemo))
		return <-errc
	}

	backend := settings.Radio.Backend
	if flagDemo {
		backend = "demo"
	}
	model := app.New(app.Options{
		Engine:   coord,
		Identity: ids,
		Headings: headings,
		Friends:  fs,
		Backend:  backend,
		PeerTTL:  settings.Registry.PeerTTL.Duration,
		Restart:  runner.Restart,
		Log:      log,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithFPS(config.TargetFPS),
	)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	stop()
	if serveErr := <-errc; err == nil {
		err = serveErr
	}
	return err
}

func printRadioHelp(err error) error {
	fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
	fmt.Fprintln(os.Stderr, "Bluetooth access requires elevated permissions.")
	fmt.Fprintln(os.Stderr, "Try one of:")
	fmt.Fprintln(os.Stderr, "  sudo ./proximity-radar")
	fmt.Fprintln(os.Stderr, "  sudo setcap cap_net_admin+ep ./proximity-radar")
	fmt.Fprintln(os.Stderr, "  ./proximity-radar --radio tinygo   (use BlueZ instead of a raw HCI socket)")
	fmt.Fprintln(os.Stderr, "  ./proximity-radar --demo           (demo mode, no hardware needed)")
	return err
}
