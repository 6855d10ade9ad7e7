// Package cmd implements the yplan command tree.
package cmd

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/yplan-controller/internal/cmd/eval"
	"github.com/clambin/yplan-controller/internal/cmd/req"
	"github.com/clambin/yplan-controller/internal/cmd/run"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "yplan",
		Short: "Y-plan central heating controller",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts := slog.HandlerOptions{}
			if viper.GetBool("debug") {
				opts.Level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &opts)))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&run.Cmd, &eval.Cmd, &req.Cmd)
}

var args = charmer.Arguments{
	"debug":           charmer.Argument{Default: false, Help: "Log debug messages"},
	"zones":           charmer.Argument{Default: "zones.yaml", Help: "Zone configuration file"},
	"gpio.chip":       charmer.Argument{Default: "sim", Help: "GPIO chip driving the relays (\"sim\" runs without hardware)"},
	"valve.return":    charmer.Argument{Default: time.Minute, Help: "Mid-position valve spring return time"},
	"rules.interval":  charmer.Argument{Default: 5 * time.Second, Help: "Rule evaluation interval"},
	"poller.interval": charmer.Argument{Default: 30 * time.Second, Help: "Poller interval"},
	"exporter.addr":   charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":     charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"api.addr":        charmer.Argument{Default: ":8081", Help: "Address of REST API"},
	"db.path":         charmer.Argument{Default: "", Help: "Path of the history database (empty: no history)"},
	"mqtt.broker":     charmer.Argument{Default: "", Help: "MQTT broker (empty: no MQTT bridge)"},
	"slack.token":     charmer.Argument{Default: "", Help: "Slack token (empty: no Slack bot)"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/yplan/")
		viper.AddConfigPath("$HOME/.yplan")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("YPLAN")
	viper.AutomaticEnv()

	// the config file is optional: all settings have defaults or come from
	// the environment
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Error("failed to read config file", "err", err)
			os.Exit(1)
		}
	}
}
