package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/casualjim/signalbus/settings"
	"github.com/fatih/color"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

func newSettingsCmd(load func() config) *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change shared settings stored in NATS KeyValue",
	}
	cmd.PersistentFlags().StringVar(&bucket, "bucket", settings.DefaultBucket, "KeyValue bucket")

	withStore := func(cmd *cobra.Command, fn func(context.Context, *settings.Store) error) error {
		ctx := cmd.Context()
		s, err := connect(ctx, load())
		if err != nil {
			return err
		}
		defer s.Close()

		js, err := jetstream.New(s.conn)
		if err != nil {
			return err
		}
		backend, err := settings.NATSKV(ctx, js, bucket)
		if err != nil {
			return err
		}
		store := settings.New(s.bus, backend)
		if err := store.Start(ctx); err != nil {
			return err
		}
		return fn(ctx, store)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print a setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(_ context.Context, store *settings.Store) error {
					fmt.Fprintln(cmd.OutOrStdout(), store.Get(args[0]))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print all settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd, func(_ context.Context, store *settings.Store) error {
					all := store.All()
					keys := make([]string, 0, len(all))
					for k := range all {
						keys = append(keys, k)
					}
					sort.Strings(keys)
					for _, k := range keys {
						fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", color.CyanString(k), all[k])
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change a setting and tell every peer to reload",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store *settings.Store) error {
					return store.Set(ctx, args[0], args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "delete KEY",
			Short: "Remove a setting and tell every peer to reload",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(ctx context.Context, store *settings.Store) error {
					return store.Delete(ctx, args[0])
				})
			},
		},
	)
	return cmd
}
