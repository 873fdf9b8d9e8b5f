package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stochastix-twin/twin-sim/api"
	"github.com/stochastix-twin/twin-sim/sim/jobs"
)

// serveSettings configure the job API server. Explicit flags win over TWIN_*
// environment variables, which win over the optional settings file; flag
// defaults apply last.
type serveSettings struct {
	Addr            string        `mapstructure:"addr"`
	MaxJobs         int           `mapstructure:"max-jobs"`
	Workers         int           `mapstructure:"workers"`
	KeepSamples     bool          `mapstructure:"samples"`
	TraceSummary    bool          `mapstructure:"trace"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

var serveConfigPath string

// serveCmd runs the HTTP job API until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve simulation jobs over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		v := viper.New()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			logrus.Fatalf("Failed to bind flags: %v", err)
		}
		settings, err := loadServeSettings(v, serveConfigPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := serve(ctx, settings); err != nil {
			logrus.Fatalf("Server error: %v", err)
		}
	},
}

// loadServeSettings resolves settings from v, which must already have the
// serve flags bound, plus TWIN_* environment variables and an optional file.
func loadServeSettings(v *viper.Viper, path string) (serveSettings, error) {
	v.SetEnvPrefix("TWIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return serveSettings{}, fmt.Errorf("error reading server config file, %w", err)
		}
	}

	var settings serveSettings
	if err := v.Unmarshal(&settings); err != nil {
		return serveSettings{}, fmt.Errorf("unable to decode server settings, %w", err)
	}
	if settings.MaxJobs <= 0 {
		return serveSettings{}, fmt.Errorf("max-jobs must be > 0, got %d", settings.MaxJobs)
	}
	if settings.RequestTimeout <= 0 {
		return serveSettings{}, fmt.Errorf("request-timeout must be > 0, got %s", settings.RequestTimeout)
	}
	return settings, nil
}

func serve(ctx context.Context, settings serveSettings) error {
	manager := jobs.NewManager(ctx, jobs.Options{
		MaxConcurrentJobs: settings.MaxJobs,
		Workers:           settings.Workers,
		KeepSamples:       settings.KeepSamples,
		TraceSummary:      settings.TraceSummary,
	})
	defer manager.Close()

	server := &http.Server{
		Addr:              settings.Addr,
		Handler:           api.NewHandler(manager, settings.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("shutdown: %v", err)
		}
	}()

	logrus.Infof("twin-sim API listening on %s (max %d concurrent jobs)", settings.Addr, settings.MaxJobs)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	// ListenAndServe returns as soon as Shutdown starts; handlers may still be
	// submitting until Shutdown itself returns.
	<-shutdownDone
	logrus.Info("Server stopped.")
	return nil
}

// registerServeFlags declares the serve settings on fs.
func registerServeFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8000", "Listen address")
	fs.Int("max-jobs", 2, "Jobs running at once; later submissions wait as pending")
	fs.Int("workers", 0, "Concurrent replications per job (0 = GOMAXPROCS)")
	fs.Bool("samples", false, "Include per-replication KPIs in Monte Carlo results")
	fs.Bool("trace", false, "Include order trace summaries in results")
	fs.Duration("request-timeout", 15*time.Second, "Per-request handler timeout")
	fs.Duration("shutdown-timeout", 8*time.Second, "Grace period for in-flight requests on shutdown")
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "server-config", "", "Optional YAML file with server settings")
	registerServeFlags(serveCmd.Flags())
}
