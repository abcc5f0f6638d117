package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/slashtodo/internal/command"
	"github.com/example/slashtodo/internal/config"
	"github.com/example/slashtodo/internal/domain/todo"
	"github.com/example/slashtodo/internal/readmodel"
)

type flags struct {
	envFile      string
	conversation string
	user         string
	team         string
	force        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Printf("[todoctl] %s", describe(err))
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	var a *app

	root := &cobra.Command{
		Use:           "todoctl",
		Short:         "Manage shared todos in a conversation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if f.conversation == "" && cmd.Name() != "rebuild" {
				return errors.New("--conversation is required")
			}
			var files []string
			if f.envFile != "" {
				files = append(files, f.envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&f.envFile, "env-file", "", "optional .env file")
	root.PersistentFlags().StringVarP(&f.conversation, "conversation", "c", "", "conversation id")
	root.PersistentFlags().StringVarP(&f.user, "user", "u", os.Getenv("USER"), "acting user id")
	root.PersistentFlags().StringVar(&f.team, "team", "", "team id")

	target := func(shortCode string) command.Target {
		return command.Target{
			TeamID:              f.team,
			UserID:              f.user,
			SlackConversationID: f.conversation,
			ShortCode:           shortCode,
		}
	}
	current := func() *app { return a }

	root.AddCommand(
		&cobra.Command{
			Use:   "add <short-code> <text...>",
			Short: "Add a todo",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				t, err := current().commands.AddTodo(cmd.Context(), command.AddTodo{
					TeamID:              f.team,
					UserID:              f.user,
					SlackConversationID: f.conversation,
					ShortCode:           args[0],
					Text:                strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s: %s\n", t.ShortCode, t.Text)
				return nil
			},
		},
		stateCmd("tick", "Mark a todo done", func(ctx context.Context, code string) (*todo.Todo, error) {
			return current().commands.TickTodo(ctx, command.TickTodo{Target: target(code)})
		}),
		stateCmd("untick", "Reopen a done todo", func(ctx context.Context, code string) (*todo.Todo, error) {
			return current().commands.UntickTodo(ctx, command.UntickTodo{Target: target(code)})
		}),
		withForce(f, stateCmd("claim", "Claim a todo", func(ctx context.Context, code string) (*todo.Todo, error) {
			return current().commands.ClaimTodo(ctx, command.ClaimTodo{Target: target(code), Force: f.force})
		})),
		withForce(f, stateCmd("free", "Release a claim", func(ctx context.Context, code string) (*todo.Todo, error) {
			return current().commands.FreeTodo(ctx, command.FreeTodo{Target: target(code), Force: f.force})
		})),
		withForce(f, stateCmd("remove", "Remove a todo", func(ctx context.Context, code string) (*todo.Todo, error) {
			return current().commands.RemoveTodo(ctx, command.RemoveTodo{Target: target(code), Force: f.force})
		})),
		&cobra.Command{
			Use:   "purge <short-code>",
			Short: "Delete a todo and its history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := current().commands.PurgeTodo(cmd.Context(), command.PurgeTodo{Target: target(args[0])}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", args[0])
				return nil
			},
		},
		listCmd(f, current),
		&cobra.Command{
			Use:   "rebuild",
			Short: "Rebuild the read models from the Postgres event store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				a := current()
				if a.postgres == nil {
					return errors.New("rebuild needs EVENT_STORE=postgres")
				}
				records, err := a.postgres.GetAllRecords(cmd.Context())
				if err != nil {
					return err
				}
				n, err := a.projector.Rebuild(cmd.Context(), a.readStore, records)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "projected %d/%d events\n", n, len(records))
				return nil
			},
		},
	)
	return root
}

func stateCmd(use, short string, run func(ctx context.Context, shortCode string) (*todo.Todo, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <short-code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatTodo(t.ShortCode, t.Text, t.IsTicked, t.ClaimedByUserID))
			return nil
		},
	}
}

func withForce(f *flags, cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "override another user's claim")
	return cmd
}

func listCmd(f *flags, current func() *app) *cobra.Command {
	var open, asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos in the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := current().queries.ListTodos
			if open {
				list = current().queries.ListOpenTodos
			}
			todos, err := list(cmd.Context(), f.conversation)
			if err != nil {
				return err
			}
			return printTodos(cmd, todos, asJSON)
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "hide ticked todos")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printTodos(cmd *cobra.Command, todos []*readmodel.TodoReadModel, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(todos)
	}
	if len(todos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no todos")
		return nil
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"Code", "Done", "Text", "Claimed By"})
	for _, t := range todos {
		done := ""
		if t.IsTicked {
			done = "x"
		}
		tw.AppendRow(table.Row{t.ShortCode, done, t.Text, t.ClaimedByUserID})
	}
	tw.Render()
	return nil
}

func formatTodo(shortCode, text string, ticked bool, claimedBy string) string {
	box := "[ ]"
	if ticked {
		box = "[x]"
	}
	line := fmt.Sprintf("%s %s  %s", box, shortCode, text)
	if claimedBy != "" {
		line += "  (claimed by " + claimedBy + ")"
	}
	return line
}

// describe renders domain errors in a user-facing way
func describe(err error) string {
	var claimed *todo.ClaimedBySomeoneElseError
	switch {
	case errors.As(err, &claimed):
		return fmt.Sprintf("claimed by %s, use --force to override", claimed.ClaimedByUserID)
	case errors.Is(err, command.ErrShortCodeTaken), errors.Is(err, command.ErrTodoNotFound):
		return err.Error()
	}
	return "Error: " + err.Error()
}
