// Command inspect prints the content of a gossip store without starting the server.
// The store is opened read-only, so it can run next to a live server.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/repositories"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Spec struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"ERROR"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var spec Spec
	if err := envconfig.Process("", &spec); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	flags := flag.NewFlagSet("inspect", flag.ContinueOnError)
	dbPath := flags.String("db", spec.BadgerFilepath, "Path to badger DB")
	what := flags.String("what", "rooms", "What to list: rooms, users or messages")
	roomID := flags.String("room", "", "Room to list messages of")
	status := flags.String("status", "", "Only list messages with this status")
	limit := flags.Int("limit", 50, "Maximum number of rows")
	if err := flags.Parse(args); err != nil {
		return err
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		return fmt.Errorf("error while opening Badger: %w", err)
	}
	defer db.Close()

	log := logs.GetLoggerFromString(spec.LogLevel)
	switch *what {
	case "rooms":
		return printRooms(out, repositories.NewRoomRepository(db), *limit)
	case "users":
		return printUsers(out, repositories.NewUserRepository(db), *limit)
	case "messages":
		if *roomID == "" {
			return fmt.Errorf("-room is required to list messages")
		}
		return printMessages(out, repositories.NewMessageRepository(db, log, nil), *roomID, *status, *limit)
	default:
		return fmt.Errorf("unknown listing %q", *what)
	}
}

func printRooms(out io.Writer, rooms repositories.IRoomRepository, limit int) error {
	items, total, err := rooms.List(repositories.RoomFilter{Page: 1, Limit: limit})
	if err != nil {
		return err
	}
	table := newTable(out, "ID", "Name", "Active", "Accepting", "Messages", "Current", "Created")
	for _, room := range items {
		table.Append([]string{
			room.ID,
			room.Name,
			yesNo(room.IsActive),
			yesNo(room.AcceptingMessages),
			strconv.FormatInt(room.MessageCount, 10),
			lo.FromPtrOr(room.CurrentMessageID, "-"),
			room.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "Total", strconv.Itoa(total)})
	table.Render()
	return nil
}

func printUsers(out io.Writer, users repositories.IUserRepository, limit int) error {
	items, total, err := users.List(repositories.UserFilter{Page: 1, Limit: limit})
	if err != nil {
		return err
	}
	table := newTable(out, "ID", "Name", "Email", "Role", "Active", "Last login")
	for _, identity := range items {
		lastLogin := "-"
		if identity.LastLoginAt != nil {
			lastLogin = identity.LastLoginAt.Format("2006-01-02 15:04:05")
		}
		table.Append([]string{
			identity.ID,
			identity.Name,
			identity.Email,
			string(identity.Role),
			yesNo(identity.IsActive),
			lastLogin,
		})
	}
	table.SetFooter([]string{"", "", "", "", "Total", strconv.Itoa(total)})
	table.Render()
	return nil
}

func printMessages(out io.Writer, messages repositories.IMessageRepository, roomID, status string, limit int) error {
	query := repositories.MessageQuery{RoomID: roomID, Limit: limit}
	if status != "" {
		s := domain.MessageStatus(status)
		if !s.IsValid() {
			return fmt.Errorf("unknown status %q", status)
		}
		query.Status = &s
	}
	items, _, err := messages.List(query)
	if err != nil {
		return err
	}
	table := newTable(out, "ID", "Status", "Displayed", "Lang", "Created", "Content")
	for _, message := range items {
		table.Append([]string{
			message.ID,
			colorStatus(message.Status),
			yesNo(message.IsDisplaying),
			lo.Ternary(message.Language == "", "-", message.Language),
			message.CreatedAt.Format("15:04:05"),
			truncate(message.Content, 60),
		})
	}
	table.Render()
	return nil
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func colorStatus(status domain.MessageStatus) string {
	switch status {
	case domain.StatusApproved:
		return color.Green.Sprint(status)
	case domain.StatusRejected:
		return color.Red.Sprint(status)
	default:
		return color.Yellow.Sprint(status)
	}
}

func yesNo(value bool) string {
	if value {
		return color.Green.Sprint("yes")
	}
	return color.Gray.Sprint("no")
}

func truncate(s string, size int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= size {
		return s
	}
	return string(runes[:size-1]) + "…"
}
