package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Initialize the cache and show the active backend and expiration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, closer, err := openCache(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closer()

			expires := "none"
			found, horizon, err := f.Horizon(cmd.Context())
			if err != nil {
				return err
			}
			if found {
				expires = fmt.Sprintf("%s (in %s)", horizon.Format(time.RFC3339), time.Until(horizon).Round(time.Second))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, labelStyle.Render("backend:")+" "+valueStyle.Render(f.Kind().String()))
			fmt.Fprintln(out, labelStyle.Render("expires:")+" "+valueStyle.Render(expires))
			return nil
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under key as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, closer, err := openCache(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closer()

			found, val, err := f.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return errors.Newf("no value for %q", args[0])
			}
			buf, err := json.Marshal(val)
			if err != nil {
				return errors.Wrap(err, "render value")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(buf))
			return nil
		},
	}
}

// parseValue interprets raw as JSON when it is valid JSON and as a plain string
// otherwise, so `set n 42` stores a number and `set s hello` a string.
func parseValue(raw string) any {
	var val any
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return raw
	}
	return val
}

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; valid JSON is stored structured, anything else as a string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, closer, err := openCache(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closer()
			return f.Set(cmd.Context(), args[0], parseValue(args[1]))
		},
	}
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Wipe every entry in the active store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, closer, err := openCache(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer closer()
			return f.Reset(cmd.Context())
		},
	}
}
