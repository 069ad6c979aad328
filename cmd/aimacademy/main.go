package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "aimacademyd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "config":
		err = cmdConfig()
	case "score":
		err = cmdScore(os.Args[2:])
	case "level":
		err = cmdLevel(os.Args[2:])
	case "challenge":
		err = cmdChallenge(os.Args[2:])
	case "debugger":
		err = cmdDebugger(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "badges":
		err = cmdBadges(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "archive":
		err = cmdArchive()
	case "mcp":
		err = cmdMCP(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("aimacademy %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`AIM Academy - Prompt engineering practice engine

Usage:
  aimacademy <command> [arguments]

Daemon Commands:
  start                         Start the AIM Academy daemon
  stop                          Stop the daemon
  status                        Show daemon status
  logs                          View daemon logs
  config                        Show current configuration

Scoring Commands (local):
  score <file|->                Score a JSON list of prompt blocks
  level <xp>                    Show the level for a total XP
  challenge list [mode]         List challenges (minimize, maximize, fix, build)
  challenge info <id>           Show challenge details
  debugger levels               List Prompt Debugger levels

Player Commands (daemon):
  challenge submit <player> <id> <file|-> [seconds]
                                Submit blocks to a challenge
  stats <player>                Show level and XP pools
  badges <player>               Show badge progress
  history <player> [limit]      Show recent XP credits

Queue Commands:
  watch <player>                Stream a player's events from RabbitMQ
  archive                       Archive queued transcripts to disk

Integration Commands:
  mcp [addr]                    Start MCP server on stdio, or over HTTP on addr

Other:
  help                          Show this help message
  version                       Show version information

Examples:
  aimacademy start
  aimacademy score prompt.json
  aimacademy challenge submit ada maximize-lesson-plan prompt.json 120
  aimacademy stats ada`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
