package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"db-shift/internal/audit"
	"db-shift/internal/metrics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool

	// Log is the CLI logger; packages receive entries derived from it.
	Log = logrus.New()
	// Metrics collects run metrics for the current command.
	Metrics = metrics.New()
)

var RootCmd = &cobra.Command{
	Use:   "db-shift",
	Short: "Migrate and validate relational databases",
	Long: `
     _ _              _     _  __ _
  __| | |__       ___| |__ (_)/ _| |_
 / _' | '_ \ ___ / __| '_ \| | |_| __|
| (_| | |_) |___|\__ \ | | | |  _| |_
 \__,_|_.__/     |___/_| |_|_|_|  \__|

DB SHIFT - Schema extraction, data migration and migration checkpoints
`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug || viper.GetBool("debug") {
			Log.SetLevel(logrus.DebugLevel)
		}
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println("❌", err)
		os.Exit(1)
	}
}

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-shift.yaml)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	RootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	viper.BindPFlag("metrics_file", RootCmd.PersistentFlags().Lookup("metrics-file"))

	setDefaults()
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Executable directory first, then the working directory.
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("db-shift")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DBSHIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		Log.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
	}
}

func logger(component string) *logrus.Entry {
	return Log.WithField("command", component)
}

func auditSink() audit.Sink {
	return audit.NewLogSink(logrus.NewEntry(Log))
}

// flushMetrics writes the textfile when one is configured.
func flushMetrics() {
	path := viper.GetString("metrics_file")
	if path == "" {
		return
	}
	if err := Metrics.WriteTextfile(path); err != nil {
		Log.WithError(err).Warn("Failed to write metrics file")
		return
	}
	Log.WithField("file", path).Info("Metrics written")
}
