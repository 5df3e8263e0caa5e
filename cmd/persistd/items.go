package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/persist/internal/errors"
	"github.com/vango-dev/persist/pkg/storage"
)

// withStore opens the store selected by flags and passes it to fn.
func withStore(ctx context.Context, flags *globalFlags, fn func(storage.Store) error) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	if flags.remote != "" {
		var store storage.Store = storage.NewHTTPStore(flags.remote)
		if cfg.Storage.Prefix != "" {
			store = storage.Prefixed(store, cfg.Storage.Prefix)
		}
		return fn(store)
	}

	// One-shot commands keep their metrics out of the default registry.
	store, closeStore, err := openStore(ctx, cfg, storeOptions{
		logger:     cfg.Logger(os.Stderr),
		registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func storageFailure(err error) error {
	return errors.New("P201").Wrap(err)
}

func getCmd(flags *globalFlags) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the JSON stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withStore(cmd.Context(), flags, func(store storage.Store) error {
				text, ok, err := store.GetItem(cmd.Context(), key)
				if err != nil {
					return storageFailure(err)
				}
				if !ok {
					return errors.New("P202").WithDetail(fmt.Sprintf("No value is stored under %q.", key))
				}
				return printJSON(cmd.OutOrStdout(), text, pretty)
			})
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the output")
	return cmd
}

func printJSON(w io.Writer, text string, pretty bool) error {
	if pretty {
		var buf bytes.Buffer
		if err := json.Indent(&buf, []byte(text), "", "  "); err == nil {
			text = buf.String()
		}
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func setCmd(flags *globalFlags) *cobra.Command {
	var asString bool

	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under a key",
		Long: `Store a JSON value under a key.

Examples:
  persistd set theme '"dark"'
  persistd set theme dark --string
  persistd set layout '{"sidebar":true,"width":240}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, text := args[0], args[1]
			if asString {
				data, _ := json.Marshal(text)
				text = string(data)
			}
			if !json.Valid([]byte(text)) {
				return errors.New("P203").
					WithDetail(fmt.Sprintf("%q is not valid JSON.", text)).
					WithSuggestion("Quote strings ('\"dark\"') or pass --string")
			}

			return withStore(cmd.Context(), flags, func(store storage.Store) error {
				if err := store.SetItem(cmd.Context(), key, text); err != nil {
					return storageFailure(err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&asString, "string", "s", false, "Store the argument as a JSON string")
	return cmd
}

func rmCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>...",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove keys",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(store storage.Store) error {
				for _, key := range args {
					if err := store.RemoveItem(cmd.Context(), key); err != nil {
						return storageFailure(err)
					}
				}
				return nil
			})
		},
	}
}

func keysCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "keys",
		Aliases: []string{"ls"},
		Short:   "List stored keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), flags, func(store storage.Store) error {
				lister, ok := store.(storage.Lister)
				if !ok {
					return errors.New("P201").Wrap(storage.ErrUnsupported)
				}
				keys, err := lister.Keys(cmd.Context())
				if err != nil {
					return storageFailure(err)
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}
}
