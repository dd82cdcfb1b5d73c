package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casualjim/signalbus"
	"github.com/casualjim/signalbus/pkg/natsx"
	"github.com/casualjim/signalbus/transport"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SIGNALBUS"

type config struct {
	NATSURL        string
	Namespace      string
	Signal         string
	MaxMessageSize int
	Timeout        time.Duration
	Verbose        bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("nats-url", nats.DefaultURL)
	v.SetDefault("namespace", signalbus.DefaultNamespace)
	v.SetDefault("signal", signalbus.DefaultSignal)
	v.SetDefault("max-message-size", transport.DefaultMaxMessageSize)
	v.SetDefault("timeout", signalbus.DefaultTimeout)
	_ = v.BindEnv("nats-url", natsx.EnvURL, envPrefix+"_NATS_URL")

	root := &cobra.Command{
		Use:           "signalbus",
		Short:         "Publish, listen and request on a fragmenting signal bus over NATS",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if v.GetBool("verbose") {
				setLogLevel(slog.LevelDebug)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("nats-url", v.GetString("nats-url"), "NATS server url ($NATS_URL)")
	flags.String("namespace", v.GetString("namespace"), "bus namespace ($SIGNALBUS_NAMESPACE)")
	flags.String("signal", v.GetString("signal"), "signal name ($SIGNALBUS_SIGNAL)")
	flags.Int("max-message-size", v.GetInt("max-message-size"), "largest fragment in bytes ($SIGNALBUS_MAX_MESSAGE_SIZE)")
	flags.Duration("timeout", v.GetDuration("timeout"), "request and reassembly timeout ($SIGNALBUS_TIMEOUT)")
	flags.BoolP("verbose", "v", false, "debug logging")
	_ = v.BindPFlags(flags)

	load := func() config {
		return config{
			NATSURL:        v.GetString("nats-url"),
			Namespace:      v.GetString("namespace"),
			Signal:         v.GetString("signal"),
			MaxMessageSize: v.GetInt("max-message-size"),
			Timeout:        v.GetDuration("timeout"),
			Verbose:        v.GetBool("verbose"),
		}
	}

	root.AddCommand(
		newListenCmd(load),
		newPublishCmd(load),
		newRequestCmd(load),
		newRespondCmd(load),
		newSettingsCmd(load),
	)
	return root
}

type session struct {
	conn *nats.Conn
	bus  *signalbus.Bus
}

func (s *session) Close() {
	s.bus.Close()
	_ = s.conn.Drain()
}

func connect(ctx context.Context, cfg config) (*session, error) {
	nc, err := natsx.Connect(cfg.NATSURL, nats.Name("signalbus-cli"), nats.Compression(true))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.NATSURL, err)
	}

	tr := transport.NATS(nc, transport.WithMaxMessageSize(cfg.MaxMessageSize))
	bus, err := signalbus.New(ctx, tr,
		signalbus.WithNamespace(cfg.Namespace),
		signalbus.WithSignal(cfg.Signal),
		signalbus.WithRequestTimeout(cfg.Timeout),
		signalbus.WithReassemblyTimeout(cfg.Timeout),
	)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return &session{conn: nc, bus: bus}, nil
}
