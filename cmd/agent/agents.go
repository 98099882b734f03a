package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentjungle/internal/domain"
	"agentjungle/internal/usecase/similarity"
)

const agentsUsage = "usage: agentjungle agents list|show NAME|delete NAME|stats|type TYPE"

func runAgents(args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return agentsCommand(context.Background(), os.Stdout, a.store, args)
}

// agentsCommand runs one registry admin subcommand against store.
func agentsCommand(ctx context.Context, w io.Writer, store domain.AgentStore, args []string) error {
	if len(args) == 0 {
		return errors.New(agentsUsage)
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "list", "ls":
		records, err := store.List(ctx)
		if err != nil {
			return err
		}
		renderAgentList(w, records)

	case "show":
		name, err := oneArg(rest, "NAME")
		if err != nil {
			return err
		}
		rec, err := store.Get(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("agent %q not found", name)
		}
		if err != nil {
			return err
		}
		renderAgentDetail(w, rec)

	case "delete", "rm":
		name, err := oneArg(rest, "NAME")
		if err != nil {
			return err
		}
		deleted, err := store.Delete(ctx, name)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("agent %q not found", name)
		}
		fmt.Fprintf(w, "%s deleted agent %s\n", styleSuccess.Render("✓"), name)

	case "stats":
		renderStats(w, store.Stats(ctx))

	case "type":
		taskType, err := oneArg(rest, "TYPE")
		if err != nil {
			return err
		}
		records, err := store.FindByType(ctx, taskType)
		if err != nil {
			return err
		}
		renderAgentList(w, records)

	default:
		return fmt.Errorf("unknown agents subcommand %q\n%s", sub, agentsUsage)
	}
	return nil
}

func runMatch(args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New(`usage: agentjungle match "QUERY"`)
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return matchCommand(context.Background(), os.Stdout, a.store, a.matcher, query, a.cfg.Matcher.Threshold)
}

// matchCommand prints how every registered agent scores against query.
func matchCommand(ctx context.Context, w io.Writer, store domain.AgentStore, m *similarity.Matcher, query string, threshold float64) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}
	renderRank(w, query, threshold, m.Rank(query, records, threshold))
	return nil
}

func oneArg(args []string, name string) (string, error) {
	v := strings.TrimSpace(strings.Join(args, " "))
	if v == "" {
		return "", fmt.Errorf("missing %s\n%s", name, agentsUsage)
	}
	return v, nil
}
