package main

import (
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/events"
	"github.com/atinyakov/devtrack/internal/client/live"
	"github.com/atinyakov/devtrack/internal/client/views"
	"github.com/atinyakov/devtrack/internal/models"
)

func (c *cli) uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "ui",
		Short:       "Open the interactive UI (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotLogToFile: "true"},
		RunE:        c.runUI,
	}
}

// channel builds the live update channel for the configured backend.
func (c *cli) channel(broker *events.Broker) (*live.Channel, error) {
	opts := []live.ChannelOption{
		live.WithTokenSource(api.TokenFunc(c.store.Token)),
		live.WithHandshakeTimeout(c.opts.Timeout.Duration),
	}
	if c.opts.CAFile != "" {
		cfg, err := api.TLSConfig(c.opts.CAFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, live.WithTLSConfig(cfg))
	}
	return live.NewChannel(c.opts.WSURL, broker, c.log.Log, opts...), nil
}

func (c *cli) runUI(cmd *cobra.Command, _ []string) error {
	broker := events.NewBroker(c.log.Log)
	ch, err := c.channel(broker)
	if err != nil {
		return err
	}
	stop := live.Bind(c.store, ch, c.log.Log)
	defer stop()

	model := views.New(cmd.Context(), c.store, c.client, broker)
	defer model.Close()

	c.log.Log.Info("ui started", zap.String("api_url", c.opts.APIURL))
	_, err = tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	).Run()
	if err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func (c *cli) watchCmd() *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live update events as JSON lines",
		Long: `watch opens the live update channel for the saved identity and prints
every event until interrupted or the server closes the connection.
The channel does not reconnect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := c.store.Identity()
			if id == nil {
				return errNotLoggedIn
			}

			broker := events.NewBroker(c.log.Log)
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			filter := make([]models.EventType, 0, len(types))
			for _, t := range types {
				filter = append(filter, models.EventType(t))
			}
			sub := broker.Subscribe(func(env models.Envelope) {
				if err := enc.Encode(env); err != nil {
					c.log.Log.Warn("print event", zap.Error(err))
				}
			}, filter...)
			defer sub.Unsubscribe()

			ch, err := c.channel(broker)
			if err != nil {
				return err
			}
			defer ch.Close()

			if err := ch.Connect(cmd.Context(), id.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", ch.URL(id.ID))

			select {
			case <-cmd.Context().Done():
			case <-ch.Done():
				fmt.Fprintln(cmd.ErrOrStderr(), "connection closed")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "only these event types (repeatable)")
	return cmd
}
