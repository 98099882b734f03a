package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; keys can come from the environment or config.yaml.
	_ = godotenv.Load()

	args := commandArgs(os.Args[1:])

	if len(args) >= 1 {
		switch args[0] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	cmd := "chat"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "chat":
		err = runChat()
	case "agents":
		err = runAgents(args)
	case "match":
		err = runMatch(args)
	case "doctor":
		err = runDoctor()
	case "encrypt":
		err = runEncrypt(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'agentjungle --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`agentjungle - a jungle of specialized agents behind one master agent

USAGE:
    agentjungle [COMMAND] [ARGS] [FLAGS]

COMMANDS:
    chat                 Interactive session with the master agent (default)
    agents list          List registered agents
    agents show NAME     Show one agent
    agents delete NAME   Remove an agent from the registry
    agents stats         Registry statistics
    agents type TYPE     List agents of one task type
    match "QUERY"        Score every registered agent against QUERY
    doctor               Run health checks on your setup
    encrypt VALUE        Encrypt a secret for config.yaml (needs AGENTJUNGLE_CONFIG_KEY)

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: AGENTJUNGLE_* variables override config; .env is loaded if present

EXAMPLES:
    agentjungle                                  # Chat with config.yaml
    agentjungle --config /etc/agentjungle.yaml   # Chat with a custom config
    agentjungle agents stats                     # How many agents exist
    agentjungle match "write a haiku"            # Which agent would serve this
    agentjungle doctor                           # Check system health`)
}

// commandArgs drops the --config flag and its value so the remaining
// arguments are the command and its operands.
func commandArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config" && i+1 < len(args):
			i++
		case strings.HasPrefix(args[i], "--config="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("AGENTJUNGLE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
