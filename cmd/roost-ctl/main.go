// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// roost-ctl is a command-line tool for controlling a running Roost daemon.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roosthq/roost/pkg/client"
)

var (
	version    = "0.9"
	apiURL     = "http://127.0.0.1:3111"
	jsonOutput = false

	// API client instance
	apiClient *client.Client
)

func main() {
	// Check for ROOST_API environment variable
	if env := os.Getenv("ROOST_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	// Parse global flags and filter them out
	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	// Initialize API client. Turns block for the whole model turn, so
	// the default timeout is generous.
	apiClient = client.New(apiURL, client.WithTimeout(10*time.Minute))

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "workers":
		err = cmdWorkers(args)
	case "start":
		err = cmdStart(args)
	case "stop":
		err = cmdStop(args)
	case "logs":
		err = cmdLogs(args)
	case "open":
		err = cmdOpen(args)
	case "resume":
		err = cmdResume(args)
	case "turn":
		err = cmdTurn(args)
	case "save":
		err = cmdSave(args)
	case "close":
		err = cmdClose(args)
	case "conversations":
		err = cmdConversations(args)
	case "sessions":
		err = cmdSessions(args)
	case "events":
		err = cmdEvents(args)
	case "version", "-v", "--version":
		fmt.Printf("roost-ctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`roost-ctl - Control a running Roost daemon

Usage:
  roost-ctl [-json] <command> [arguments]

Global Flags:
  -json          Output in JSON format

Environment:
  ROOST_API      Base URL of Roost API (default: http://127.0.0.1:3111)

Commands:
  workers                  List supervised backend workers
  start <dir>              Start (or reuse) the worker for a directory
  stop <dir>               Stop the worker for a directory
  logs <dir> [-n N]        Show worker stderr logs (default: 100 lines)

  open <dir>               Open a conversation in a directory
  resume <session> <dir>   Open a conversation from a saved session
  turn <id> <content>      Run one conversation turn, print the reply
  save <id>                Save a conversation as a session
  close <id>               Close a conversation
  conversations            List open conversations

  sessions [dir]           List saved sessions, newest first
    -combined <dir>        Merged per-directory and recent view
    -get <name>            Load one session with its messages
    -clear                 Remove all saved sessions

  events [options]         Show recent events
    -type <pattern>        Filter by type (can repeat, e.g. worker.*)
    -window <duration>     Only events newer than duration (e.g. 5m)
    -n N                   Limit number of events

  version                  Show version
  help                     Show this help`)
}

// printJSON outputs any value as formatted JSON
func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func cmdWorkers(args []string) error {
	ctx := context.Background()

	workers, err := apiClient.Workers.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(workers)
		return nil
	}

	fmt.Printf("%-40s %-8s %-10s %-8s\n", "DIRECTORY", "PORT", "STATE", "PID")
	fmt.Println(strings.Repeat("-", 70))
	for _, w := range workers {
		pid := "-"
		if w.PID > 0 {
			pid = strconv.Itoa(w.PID)
		}
		dir := w.Key
		if len(dir) > 40 {
			dir = "..." + dir[len(dir)-37:]
		}
		fmt.Printf("%-40s %-8d %-10s %-8s\n", dir, w.Port, w.State, pid)
	}

	return nil
}

func cmdStart(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl start <dir>")
	}

	ctx := context.Background()
	result, err := apiClient.Workers.Start(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	fmt.Printf("Worker for %s on port %d\n", result.WorkingDir, result.Port)
	return nil
}

func cmdStop(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl stop <dir>")
	}

	ctx := context.Background()
	if err := apiClient.Workers.Stop(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Stopping worker for %s\n", args[0])
	return nil
}

func cmdLogs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl logs <dir> [-n N]")
	}

	dir := args[0]
	lines := 100
	for i := 1; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for -n: %s", args[i])
			}
			lines = n
		}
	}

	ctx := context.Background()
	out, err := apiClient.Workers.Logs(ctx, dir, lines)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}

	for _, line := range out {
		fmt.Println(line)
	}
	return nil
}

func cmdOpen(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl open <dir>")
	}

	ctx := context.Background()
	conv, err := apiClient.Conversations.Open(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(conv)
		return nil
	}

	fmt.Printf("Conversation %s in %s (worker port %d)\n", conv.ID, conv.WorkingDir, conv.Port)
	return nil
}

func cmdResume(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: roost-ctl resume <session> <dir>")
	}

	ctx := context.Background()
	conv, err := apiClient.Conversations.Resume(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(conv)
		return nil
	}

	fmt.Printf("Conversation %s resumed from %q (%d messages)\n", conv.ID, args[0], len(conv.Messages))
	return nil
}

func cmdTurn(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: roost-ctl turn <id> <content>")
	}

	id := args[0]
	content := strings.Join(args[1:], " ")

	ctx := context.Background()
	conv, err := apiClient.Conversations.Turn(ctx, id, content)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(conv)
		return nil
	}

	printMessages(conv.Messages)
	return nil
}

func cmdSave(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl save <id>")
	}

	ctx := context.Background()
	result, err := apiClient.Conversations.Save(ctx, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(result)
		return nil
	}

	fmt.Printf("Saved as %q (%s)\n", result.Name, result.Path)
	return nil
}

func cmdClose(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: roost-ctl close <id>")
	}

	ctx := context.Background()
	if err := apiClient.Conversations.Close(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Closed conversation %s\n", args[0])
	return nil
}

func cmdConversations(args []string) error {
	ctx := context.Background()

	convs, err := apiClient.Conversations.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(convs)
		return nil
	}

	fmt.Printf("%-38s %-30s %-8s %s\n", "ID", "DIRECTORY", "PORT", "PHASE")
	fmt.Println(strings.Repeat("-", 90))
	for _, c := range convs {
		dir := c.WorkingDir
		if len(dir) > 30 {
			dir = "..." + dir[len(dir)-27:]
		}
		fmt.Printf("%-38s %-30s %-8d %s\n", c.ID, dir, c.Port, c.Phase)
	}

	return nil
}

func cmdSessions(args []string) error {
	ctx := context.Background()

	// Subcommand flags
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-clear":
			if err := apiClient.Sessions.Clear(ctx); err != nil {
				return err
			}
			fmt.Println("Cleared all sessions")
			return nil
		case args[i] == "-get" && i+1 < len(args):
			sess, err := apiClient.Sessions.Get(ctx, args[i+1])
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(sess)
				return nil
			}
			fmt.Printf("Session %q (%s)\n\n", sess.Name, sess.Path)
			printMessages(sess.Messages)
			return nil
		case args[i] == "-combined" && i+1 < len(args):
			sessions, err := apiClient.Sessions.Combined(ctx, args[i+1])
			if err != nil {
				return err
			}
			return printSessions(sessions)
		}
	}

	dir := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		dir = args[0]
	}

	sessions, err := apiClient.Sessions.List(ctx, dir)
	if err != nil {
		return err
	}
	return printSessions(sessions)
}

func printSessions(sessions []client.Session) error {
	if jsonOutput {
		printJSON(sessions)
		return nil
	}

	fmt.Printf("%-40s %-20s %s\n", "NAME", "MODIFIED", "DIRECTORY")
	fmt.Println(strings.Repeat("-", 90))
	for _, s := range sessions {
		name := s.Name
		if s.Latest {
			name += " *"
		}
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Printf("%-40s %-20s %s\n", name, s.Modified.Format("2006-01-02 15:04:05"), s.Directory)
	}

	return nil
}

func printMessages(messages []client.Message) {
	for _, m := range messages {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		for _, inv := range m.ToolInvocations {
			fmt.Printf("  tool %s (%s)\n", inv.ToolName, inv.State)
		}
	}
}

func cmdEvents(args []string) error {
	opts := &client.EventListOptions{}

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-type" && i+1 < len(args):
			i++
			opts.Types = append(opts.Types, args[i])
		case args[i] == "-window" && i+1 < len(args):
			i++
			opts.Window = args[i]
		case args[i] == "-n" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for -n: %s", args[i])
			}
			opts.Limit = n
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	ctx := context.Background()
	events, err := apiClient.Events.List(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(events)
		return nil
	}

	for _, e := range events {
		line := fmt.Sprintf("%s  %-28s", e.Timestamp.Format("15:04:05"), e.Type)
		if len(e.Payload) > 0 {
			payload, _ := json.Marshal(e.Payload)
			line += "  " + string(payload)
		}
		fmt.Println(line)
	}

	return nil
}
