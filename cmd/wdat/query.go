package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/G-Node/wdat2-sub001/bus"
	"github.com/G-Node/wdat2-sub001/dataapi"
	"github.com/G-Node/wdat2-sub001/dispatcher"
	"github.com/G-Node/wdat2-sub001/errors"
	"github.com/G-Node/wdat2-sub001/message"
	"github.com/G-Node/wdat2-sub001/network"
)

// queryEvent is the event one-shot queries are sent and answered on.
const queryEvent = "cli"

type queryOptions struct {
	Pretty bool
	Depth  int
}

func newGetCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "get <specifier>...",
		Short: "Search objects by specifier",
		Long: `Search the repository with one or more specifiers given as JSON objects
and print the reply.

  wdat get '{"type": "section", "parent": ""}'
  wdat get '{"type": "analogsignal", "segment": 12, "depth": 1}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]network.Specifier, 0, len(args))
			for _, arg := range args {
				var spec network.Specifier
				if err := json.Unmarshal([]byte(arg), &spec); err != nil {
					return fmt.Errorf("specifier %q is not a JSON object: %w", arg, err)
				}
				specs = append(specs, spec)
			}

			return runQuery(cmd, rootOpts, opts, func(ctx context.Context, api *dataapi.DataAPI) error {
				if len(specs) == 1 {
					return api.Get(ctx, queryEvent, specs[0], nil)
				}
				return api.GetMany(ctx, queryEvent, specs, nil)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Pretty, "pretty", getEnvBool("WDAT_PRETTY", false),
		"Indent the printed reply (env: WDAT_PRETTY)")
	return cmd
}

func newFetchCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Load objects by URL",
		Long: `Load objects by URL or permalink and print the reply. With --depth the
children of each object are loaded too.

  wdat fetch /metadata/section/1 --depth 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Depth < 0 {
				return fmt.Errorf("invalid depth: %d", opts.Depth)
			}
			return runQuery(cmd, rootOpts, opts, func(ctx context.Context, api *dataapi.DataAPI) error {
				return api.GetByURL(ctx, queryEvent, args, opts.Depth, nil)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Depth, "depth", "d", getEnvInt("WDAT_DEPTH", 0),
		"Levels of children to load (env: WDAT_DEPTH)")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", getEnvBool("WDAT_PRETTY", false),
		"Indent the printed reply (env: WDAT_PRETTY)")
	return cmd
}

// runQuery handles one request in process and prints its reply to stdout.
// Logs go to stderr. A failed reply is printed and returned as an error.
func runQuery(
	cmd *cobra.Command,
	rootOpts *rootOptions,
	opts *queryOptions,
	send func(context.Context, *dataapi.DataAPI) error,
) error {
	cfg, err := loadConfig(rootOpts)
	if err != nil {
		return err
	}
	logger := rootOpts.logger(cfg, cmd.ErrOrStderr())

	d, err := newDispatcher(cfg, logger, nil)
	if err != nil {
		return err
	}

	b := bus.New(
		bus.WithLogger(logger),
		bus.WithErrorHook(func(string, any) bool { return true }),
	)
	var reply *message.Reply
	b.Subscribe(queryEvent, func(_ string, payload any) {
		if r, ok := payload.(message.Reply); ok {
			reply = &r
		}
	})

	// Inline delivers the reply before Send returns.
	api, err := dataapi.New(b, dispatcher.NewInline(d), dataapi.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = api.Close(context.Background()) }()

	if err := send(cmd.Context(), api); err != nil {
		return err
	}
	if reply == nil {
		return errors.WrapFatal(fmt.Errorf("no reply on %q", queryEvent), "CLI", "runQuery", "wait for reply")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(reply); err != nil {
		return fmt.Errorf("print reply: %w", err)
	}
	if reply.Error {
		return fmt.Errorf("request failed: %s", reply.Message)
	}
	return nil
}
