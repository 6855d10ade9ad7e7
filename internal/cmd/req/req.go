// Package req implements the yplan req command: a small client for the REST
// API to add or cancel override requests from the command line.
package req

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/clambin/go-common/charmer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Cmd = cobra.Command{
		Use:   "req <zone> <target> [until]",
		Short: "send an override request to a running controller",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			until := ""
			if len(args) > 2 {
				until = args[2]
			}
			return request(cmd.OutOrStdout(), viper.GetString("req.url"), args[0], args[1], until)
		},
	}

	args = charmer.Arguments{
		"req.url":    charmer.Argument{Default: "http://localhost:8081", Help: "URL of the REST API"},
		"req.source": charmer.Argument{Default: "cli", Help: "Source of the request"},
	}
)

func init() {
	_ = charmer.SetPersistentFlags(&Cmd, viper.GetViper(), args)
}

func request(w io.Writer, url, zone, target, until string) error {
	value, err := strconv.ParseFloat(target, 64)
	if err != nil {
		return fmt.Errorf("invalid target temperature: %q", target)
	}
	body := map[string]any{
		"source": viper.GetString("req.source"),
		"target": value,
		"until":  until,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url+"/api/zones/"+zone+"/requests", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	response, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed: %s: %s", resp.Status, string(response))
	}
	_, _ = fmt.Fprintln(w, string(response))
	return nil
}
