package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup/internal/client"
	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/geolocate"
	"github.com/kjstillabower/weather-lookup/internal/observability"
	"github.com/kjstillabower/weather-lookup/internal/orchestrator"
	"github.com/kjstillabower/weather-lookup/internal/store"
	"github.com/kjstillabower/weather-lookup/internal/units"
)

// errLookupFailed marks a run that printed an error page; the message was
// already shown, so main only sets the exit code.
var errLookupFailed = errors.New("lookup failed")

// runtimeDeps are the collaborators a command needs. Tests inject them;
// otherwise they are built from config on first use.
type runtimeDeps struct {
	resolver  orchestrator.LocationResolver
	fetcher   orchestrator.ForecastFetcher
	namer     orchestrator.ReverseGeocoder
	favorites *store.Store
	logger    *zap.Logger
	maxQuery  int
	units     units.Preference
	closeFn   func() error
}

type options struct {
	verbose bool
	units   string
	profile string
	db      string
}

// newRootCommand builds the CLI around deps. When deps carries no resolver,
// the persistent pre-run loads config and builds real clients into it; run
// the command through execute so they are released afterwards.
func newRootCommand(deps *runtimeDeps) *cobra.Command {
	opts := &options{}
	injected := deps.resolver != nil

	rootCmd := &cobra.Command{
		Use:           "weather",
		Short:         "Look up current conditions and forecasts from Open-Meteo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.units, "units", "", `unit preference: "metric", "imperial" or "system,temp,speed,precip"`)
	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", defaultProfile(), "favorites profile name")
	rootCmd.PersistentFlags().StringVar(&opts.db, "db", "", "SQLite favorites file when the configured store is in-memory")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if !injected {
			if err := deps.build(opts); err != nil {
				return err
			}
		}
		if opts.units != "" {
			pref, err := units.ParsePreference(opts.units)
			if err != nil {
				return err
			}
			deps.units = pref
		}
		return nil
	}
	rootCmd.AddCommand(
		searchCommand(deps),
		hereCommand(deps),
		favoritesCommand(deps, opts),
	)
	return rootCmd
}

// execute runs cmd and then closes deps. Cobra skips post-run hooks when
// RunE fails, so the close happens here instead.
func execute(ctx context.Context, cmd *cobra.Command, deps *runtimeDeps) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := deps.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// close releases what build opened. Safe to call more than once.
func (d *runtimeDeps) close() error {
	if d.closeFn == nil {
		return nil
	}
	fn := d.closeFn
	d.closeFn = nil
	return fn()
}

func defaultProfile() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

// build wires real clients from config.Load.
func (d *runtimeDeps) build(opts *options) error {
	logger, err := observability.NewCLILogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	geocoder, err := client.NewGeocodingClient(cfg.GeocodingURL, cfg.GeocodingTimeout, cfg.MaxCandidates)
	if err != nil {
		return err
	}
	forecaster, err := client.NewForecastClient(cfg.ForecastURL, cfg.ForecastTimeout)
	if err != nil {
		return err
	}

	backendOpts := store.BackendOptions{
		Kind:             cfg.StoreBackend,
		DSN:              cfg.StoreDSN,
		MemcachedAddrs:   cfg.MemcachedAddrs,
		MemcachedTimeout: cfg.MemcachedTimeout,
		MaxIdleConns:     cfg.MemcachedMaxIdleConns,
		TTL:              cfg.StoreTTL,
	}
	if backendOpts.Kind == "memory" {
		// A process-local map would forget favorites on exit.
		path, err := favoritesPath(opts.db)
		if err != nil {
			return err
		}
		backendOpts.Kind, backendOpts.DSN = "sqlite", path
	}
	backend, err := store.OpenBackend(context.Background(), backendOpts)
	if err != nil {
		return fmt.Errorf("favorites store: %w", err)
	}

	d.resolver = geocoder
	d.fetcher = forecaster
	d.namer = geolocate.StaticNamer{}
	if cfg.GoogleGeocodingAPIKey != "" {
		if g, err := geolocate.NewGoogleReverseGeocoder(cfg.GoogleGeocodingAPIKey); err == nil {
			d.namer = g
		}
	}
	d.favorites = store.New(backend, cfg.MaxFavorites)
	d.logger = logger
	d.maxQuery = cfg.MaxQueryLength
	d.units = cfg.DefaultUnits
	d.closeFn = func() error {
		_ = observability.FlushTelemetry(context.Background(), logger)
		return backend.Close()
	}
	return nil
}

func favoritesPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	dir = filepath.Join(dir, "weather-lookup")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "favorites.db"), nil
}

// session builds a one-run orchestrator printing to cmd's output.
func (d *runtimeDeps) session(cmd *cobra.Command, profile string) (*orchestrator.Orchestrator, *textPresenter) {
	p := newTextPresenter(cmd.OutOrStdout())
	pref := d.units
	if pref == (units.Preference{}) {
		pref = units.DefaultPreference()
	}
	opts := []orchestrator.Option{orchestrator.WithPreference(pref)}
	if d.logger != nil {
		opts = append(opts, orchestrator.WithLogger(d.logger))
	}
	if d.maxQuery > 0 {
		opts = append(opts, orchestrator.WithMaxQueryLength(d.maxQuery))
	}
	if d.namer != nil {
		opts = append(opts, orchestrator.WithReverseGeocoder(d.namer))
	}
	if d.favorites != nil && profile != "" {
		opts = append(opts, orchestrator.WithStore(d.favorites.Profile(profile)))
	}
	return orchestrator.New(d.resolver, d.fetcher, p, opts...), p
}

type searchFlags struct {
	country string
	pick    int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.country, "country", "c", "", "restrict to an ISO 3166-1 alpha-2 country code")
	cmd.Flags().IntVarP(&f.pick, "pick", "p", 0, "choose the Nth candidate when the query is ambiguous")
}

// runSearch resolves query and, for ambiguous results, applies --pick.
// It reports whether a forecast was rendered.
func runSearch(ctx context.Context, orch *orchestrator.Orchestrator, p *textPresenter, query string, f *searchFlags) (bool, error) {
	err := orch.SearchInCountry(ctx, query, f.country)
	if err != nil {
		return false, outcome(err)
	}
	if orch.State() == orchestrator.StateDisambiguating && f.pick > 0 {
		onSelect, loc, err := p.pick(f.pick)
		if err != nil {
			return false, err
		}
		if err := onSelect(ctx, loc); err != nil {
			return false, outcome(err)
		}
	}
	return orch.State() == orchestrator.StateRendered, nil
}

// outcome maps orchestrator errors to CLI errors. Anything the presenter
// already printed becomes errLookupFailed.
func outcome(err error) error {
	var invalid *orchestrator.InvalidInputError
	var resolution *orchestrator.ResolutionFailure
	var fetch *orchestrator.FetchFailure
	switch {
	case errors.As(err, &invalid), errors.As(err, &resolution), errors.As(err, &fetch):
		return errLookupFailed
	}
	return err
}

func searchCommand(deps *runtimeDeps) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for a place and print its weather",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, p := deps.session(cmd, "")
			_, err := runSearch(cmd.Context(), orch, p, strings.Join(args, " "), flags)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func hereCommand(deps *runtimeDeps) *cobra.Command {
	var lat, lon float64
	cmd := &cobra.Command{
		Use:   "here",
		Short: "Print the weather at a latitude/longitude fix",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _ := deps.session(cmd, "")
			if err := orch.OnGeolocation(cmd.Context(), lat, lon); err != nil {
				if errors.Is(err, orchestrator.ErrInvalidLocation) {
					return fmt.Errorf("invalid coordinates %g,%g", lat, lon)
				}
				return outcome(err)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func favoritesCommand(deps *runtimeDeps, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage saved locations",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved locations, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _ := deps.session(cmd, opts.profile)
			favs, err := orch.Favorites(cmd.Context())
			if err != nil {
				return err
			}
			if len(favs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved locations yet.")
				return nil
			}
			for i, f := range favs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, f.DisplayName())
			}
			return nil
		},
	}

	addFlags := &searchFlags{}
	addCmd := &cobra.Command{
		Use:   "add <query>",
		Short: "Search for a place and save it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, p := deps.session(cmd, opts.profile)
			rendered, err := runSearch(cmd.Context(), orch, p, strings.Join(args, " "), addFlags)
			if err != nil || !rendered {
				return err
			}
			if err := orch.SaveCurrent(cmd.Context()); err != nil {
				return err
			}
			loc, _, _ := orch.Current()
			fmt.Fprintf(cmd.OutOrStdout(), "\nSaved %s.\n", loc.DisplayName())
			return nil
		},
	}
	addFlags.register(addCmd)

	showCmd := &cobra.Command{
		Use:   "show <n>",
		Short: "Print the weather for saved location n (see list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("n must be a number: %w", err)
			}
			orch, _ := deps.session(cmd, opts.profile)
			if err := orch.SelectFavorite(cmd.Context(), n-1); err != nil {
				return outcome(err)
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, addCmd, showCmd)
	return cmd
}
