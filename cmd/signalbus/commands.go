package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casualjim/signalbus"
	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
)

func notifyContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func printMessage(w io.Writer, msg signalbus.Message) {
	ts := time.Time(msg.ReceivedAt).Format(time.StampMilli)
	if msg.IsRequest() {
		fmt.Fprintf(w, "%s %s %s %s\n", ts, color.CyanString(msg.Topic), color.YellowString("reply-to=%s", msg.ReplyTo), msg.String())
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", ts, color.CyanString(msg.Topic), msg.String())
}

func newListenCmd(load func() config) *cobra.Command {
	return &cobra.Command{
		Use:   "listen TOPIC...",
		Short: "Print every message published on the given topics",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := notifyContext(cmd)
			defer cancel()

			s, err := connect(ctx, load())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			for _, topic := range args {
				s.bus.SubscribeFunc(topic, func(_ context.Context, msg signalbus.Message) error {
					printMessage(out, msg)
					return nil
				})
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "listening on %s\n", color.GreenString(s.bus.ChannelID()))
			<-ctx.Done()
			return nil
		},
	}
}

func newPublishCmd(load func() config) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "publish TOPIC [VALUE]",
		Short: "Publish a value on a topic",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(argAt(args, 1), sets)
			if err != nil {
				return err
			}
			s, err := connect(cmd.Context(), load())
			if err != nil {
				return err
			}
			defer s.Close()
			return s.bus.Publish(cmd.Context(), args[0], payload)
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a path in the value, path=value")
	return cmd
}

func newRequestCmd(load func() config) *cobra.Command {
	var (
		sets []string
		get  string
	)
	cmd := &cobra.Command{
		Use:   "request TOPIC [VALUE]",
		Short: "Publish a request and print the reply",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(argAt(args, 1), sets)
			if err != nil {
				return err
			}
			cfg := load()
			s, err := connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			reply, err := s.bus.Request(cmd.Context(), args[0], payload, cfg.Timeout).Await(cmd.Context())
			if err != nil {
				return err
			}
			if get != "" {
				fmt.Fprintln(cmd.OutOrStdout(), reply.Get(get).String())
				return nil
			}
			var v any
			if err := reply.Decode(&v); err != nil {
				return err
			}
			printer := pp.New()
			printer.SetOutput(cmd.OutOrStdout())
			printer.SetColoringEnabled(!color.NoColor)
			_, err = printer.Println(v)
			return err
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a path in the value, path=value")
	cmd.Flags().StringVar(&get, "get", "", "print only this gjson path of the reply")
	return cmd
}

func newRespondCmd(load func() config) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "respond TOPIC [VALUE]",
		Short: "Answer every request on a topic with a fixed value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(argAt(args, 1), sets)
			if err != nil {
				return err
			}
			ctx, cancel := notifyContext(cmd)
			defer cancel()

			s, err := connect(ctx, load())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			s.bus.SubscribeFunc(args[0], func(ctx context.Context, msg signalbus.Message) error {
				printMessage(out, msg)
				if !msg.IsRequest() {
					return nil
				}
				return s.bus.Reply(ctx, msg, payload)
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "responding on %s\n", color.GreenString(args[0]))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set a path in the reply, path=value")
	return cmd
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
