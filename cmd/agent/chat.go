package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	"agentjungle/internal/usecase/orchestrator"
)

// requestHandler is the part of the orchestrator the REPL drives.
type requestHandler interface {
	Handle(ctx context.Context, request string) orchestrator.Result
}

func runChat() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newChatApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	printBanner(os.Stdout, a.cfg.Orchestrator.Identity)
	renderStats(os.Stdout, a.store.Stats(ctx))

	s := &chatSession{
		handler:  a.orch,
		identity: a.cfg.Orchestrator.Identity,
		timeout:  a.cfg.Orchestrator.RequestTimeout,
		render:   newMarkdownRenderer(maxContentWidth),
		out:      os.Stdout,
	}
	return s.run(ctx, os.Stdin)
}

// chatSession is one interactive conversation with the master agent.
type chatSession struct {
	handler  requestHandler
	identity string
	timeout  time.Duration // per request; 0 = none
	render   func(string) string
	out      io.Writer
}

func isExitCommand(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// run reads one request per line until EOF, an exit command, or ctx ends.
func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(s.out, "\n"+styleUserLabel.Render("You: "))

		var line string
		select {
		case <-ctx.Done():
			s.goodbye()
			return nil
		case l, ok := <-lines:
			if !ok {
				s.goodbye()
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		if isExitCommand(line) {
			s.goodbye()
			return nil
		}
		if line == "" {
			fmt.Fprintln(s.out, "Please enter a request.")
			continue
		}

		s.handle(ctx, line)
	}
}

func (s *chatSession) handle(ctx context.Context, request string) {
	reqCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	fmt.Fprintln(s.out, styleMuted.Render("Processing your request..."))
	res := s.handler.Handle(reqCtx, request)

	label := s.identity
	switch res.Route {
	case orchestrator.RouteReused:
		label = fmt.Sprintf("%s via %s (score %.2f)", s.identity, res.Agent.Name, res.Score)
	case orchestrator.RouteCreated:
		label = fmt.Sprintf("%s via new agent %s", s.identity, res.Agent.Name)
	case orchestrator.RouteFallback:
		label = fmt.Sprintf("%s via fallback agent %s", s.identity, res.Agent.Name)
	}
	fmt.Fprintln(s.out, styleAgentLabel.Render(label+":"))
	fmt.Fprintln(s.out, s.render(res.Reply))
}

func (s *chatSession) goodbye() {
	fmt.Fprintln(s.out, "\nGoodbye!")
}

func printBanner(w io.Writer, identity string) {
	banner := strings.Join([]string{
		styleTitle.Render("agentjungle"),
		"Dynamic agent creation and delegation, led by " + identity + ".",
		styleMuted.Render("Enter any request to start. Type 'quit', 'exit' or 'q' to leave."),
	}, "\n")
	fmt.Fprintln(w, styleCard.Render(banner))
}

// newMarkdownRenderer returns a glamour-backed renderer. Replies are
// printed raw when the renderer cannot be built or fails.
func newMarkdownRenderer(width int) func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s
		}
		return strings.TrimRight(out, "\n")
	}
}
