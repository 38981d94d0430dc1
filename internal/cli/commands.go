// Package cli implements the interactive operator console: connection and
// session tables, kicks, config edits and shutdown.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/db"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
)

const (
	prompt              = "craftflow> "
	defaultSessionCount = 20
	kickReason          = "Kicked by an operator"
)

var errUsage = errors.New("usage")

// SessionLister reads the session ledger.
type SessionLister interface {
	Recent(limit int) ([]db.Session, error)
}

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg         *config.Config
	eventBus    *events.EventBus
	connections *network.ConnectionRegistry
	sessions    SessionLister

	in  io.Reader
	out io.Writer
}

// NewCLI creates a CLI reading stdin and writing stdout. sessions may be nil
// when the ledger is disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, connections *network.ConnectionRegistry, sessions SessionLister) *CLI {
	return &CLI{
		cfg:         cfg,
		eventBus:    eventBus,
		connections: connections,
		sessions:    sessions,
		in:          os.Stdin,
		out:         os.Stdout,
	}
}

// Start runs the read loop until input ends or ctx is cancelled.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\ncraftflow CLI ready. Type 'help' for available commands.")
	fmt.Fprintln(c.out, "─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, prompt)
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "connections", "conns", "c":
		c.printConnections()
	case "versions", "v":
		c.printVersions()
	case "sessions":
		return c.printSessions(args)
	case "kick":
		return c.cmdKick(args)
	case "setconfig":
		return c.cmdSetConfig(ctx, args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down craftflow...")
		c.eventBus.Emit(context.WithoutCancel(ctx), events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Fprintln(c.out, "\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(c.out, "║                    craftflow CLI Commands                    ║")
	fmt.Fprintln(c.out, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(c.out, "║  status              Connection counts per state             ║")
	fmt.Fprintln(c.out, "║  connections         List live connections                   ║")
	fmt.Fprintln(c.out, "║  versions            List supported protocol versions        ║")
	fmt.Fprintln(c.out, "║  sessions [n]        Show the n newest ledger sessions       ║")
	fmt.Fprintln(c.out, "║  kick <id> [reason]  Disconnect a connection                 ║")
	fmt.Fprintln(c.out, "║  setconfig <k> <v>   Update a server config value            ║")
	fmt.Fprintln(c.out, "║  quit                Shutdown craftflow                      ║")
	fmt.Fprintln(c.out, "║  help                Show this help message                  ║")
	fmt.Fprintln(c.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(c.out)
}

func (c *CLI) newTable(header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

// printStatus shows how many connections sit in each state.
func (c *CLI) printStatus() {
	srv := c.cfg.GetServer()
	fmt.Fprintf(c.out, "\n  Listening on: %s\n", srv.Address())
	fmt.Fprintf(c.out, "  Versions:     %s to %s\n", protocol.MinVersion(), protocol.MaxVersion())
	fmt.Fprintf(c.out, "  Players:      %d/%d\n\n", c.connections.CountInState(protocol.StatePlay), srv.MaxPlayers)

	tw := c.newTable("State", "Connections")
	for _, state := range []protocol.State{
		protocol.StateHandshake,
		protocol.StateStatus,
		protocol.StateLogin,
		protocol.StateConfiguration,
		protocol.StatePlay,
	} {
		tw.Append([]string{state.String(), strconv.Itoa(c.connections.CountInState(state))})
	}
	tw.SetFooter([]string{"total", strconv.Itoa(c.connections.Count())})
	tw.Render()
	fmt.Fprintln(c.out)
}

// printConnections lists live connections in a table.
func (c *CLI) printConnections() {
	snapshot := c.connections.Snapshot()
	if len(snapshot) == 0 {
		fmt.Fprintln(c.out, "No live connections")
		return
	}

	tw := c.newTable("ID", "Remote", "Version", "State", "Compressed", "Encrypted", "Connected")
	for _, info := range snapshot {
		tw.Append([]string{
			strconv.FormatUint(info.ID, 10),
			info.Remote,
			versionLabel(info.ClientVersion),
			info.WriteState.String(),
			strconv.FormatBool(info.Compressed),
			strconv.FormatBool(info.Encrypted),
			time.Since(info.ConnectedAt).Truncate(time.Second).String(),
		})
	}
	tw.Render()
}

// printVersions lists the protocol versions the codecs speak.
func (c *CLI) printVersions() {
	tw := c.newTable("Protocol", "Release")
	for _, v := range protocol.SupportedVersions {
		tw.Append([]string{strconv.Itoa(int(v)), v.String()})
	}
	tw.Render()
}

// printSessions shows the newest sessions of the ledger.
func (c *CLI) printSessions(args []string) error {
	if c.sessions == nil {
		return errors.New("session ledger is disabled")
	}
	limit := defaultSessionCount
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	sessions, err := c.sessions.Recent(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "No sessions recorded")
		return nil
	}

	tw := c.newTable("Conn", "Remote", "Version", "Player", "Started", "Ended", "Reason")
	for _, s := range sessions {
		ended := "-"
		if s.DisconnectedAt != nil {
			ended = s.DisconnectedAt.Format(time.DateTime)
		}
		player := s.Username
		if player == "" {
			player = "-"
		}
		tw.Append([]string{
			strconv.FormatUint(s.ConnID, 10),
			s.Remote,
			versionLabel(s.Version),
			player,
			s.StartedAt.Format(time.DateTime),
			ended,
			s.Reason,
		})
	}
	tw.Render()
	return nil
}

func (c *CLI) cmdKick(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: kick <id> [reason]", errUsage)
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid connection id: %s", args[0])
	}
	conn, ok := c.connections.Get(id)
	if !ok {
		return fmt.Errorf("connection %d not found", id)
	}

	reason := kickReason
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	if err := conn.Disconnect(reason); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Kicked connection %d: %s\n", id, reason)
	return nil
}

func (c *CLI) cmdSetConfig(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: setconfig <key> <value>", errUsage)
	}

	key := args[0]
	value := parseValue(strings.Join(args[1:], " "))

	if err := c.cfg.UpdateServerField(key, value); err != nil {
		return err
	}
	if err := c.cfg.Save(); err != nil {
		return err
	}

	c.eventBus.Emit(context.WithoutCancel(ctx), events.Event{
		Type:    events.EventConfigChanged,
		Source:  "cli",
		Payload: &events.ConfigChangedPayload{Section: "server", Key: key, Value: value},
	})
	fmt.Fprintf(c.out, "Config updated: %s = %v\n", key, value)
	return nil
}

// parseValue turns a typed word into the JSON value it most likely means.
func parseValue(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func versionLabel(v protocol.Version) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", v, int32(v))
}
