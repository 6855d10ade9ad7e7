// Package eval implements the yplan eval command: it resolves each
// configured zone's schedule over a full day, so a schedule change can be
// checked before deploying it.
package eval

import (
	"fmt"
	"io"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/yplan-controller/internal/configuration"
	"github.com/clambin/yplan-controller/internal/schedule"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Cmd = cobra.Command{
		Use:   "eval",
		Short: "print the resolved zone schedules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configuration.LoadFromFile(viper.GetString("zones"))
			if err != nil {
				return err
			}
			return evalZones(cmd.OutOrStdout(), cfg, viper.GetDuration("eval.interval"))
		},
	}

	args = charmer.Arguments{
		"eval.interval": charmer.Argument{Default: time.Hour, Help: "Resolution of the printed schedule"},
	}
)

func init() {
	_ = charmer.SetPersistentFlags(&Cmd, viper.GetViper(), args)
}

func evalZones(w io.Writer, cfg configuration.Configuration, interval time.Duration) error {
	for _, zoneCfg := range cfg.Zones {
		s, err := schedule.New(zoneCfg.Schedule)
		if err != nil {
			return fmt.Errorf("zone %s: %w", zoneCfg.Name, err)
		}
		_, _ = fmt.Fprintf(w, "%s (%s):\n", zoneCfg.Name, zoneCfg.Rule)

		midnight := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.Local)
		for t := midnight; t.Day() == 1; t = t.Add(interval) {
			_, _ = fmt.Fprintf(w, "  %s  %5.1fºC\n", t.Format("15:04"), s.ValueAt(t))
		}
	}
	return nil
}
