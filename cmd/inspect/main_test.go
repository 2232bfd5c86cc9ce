package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/repositories"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) string {
	dir := t.TempDir()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	room := domain.Room{ID: "room-1", Name: "Town hall", IsActive: true, AcceptingMessages: true, CreatedAt: now}
	require.NoError(t, repositories.NewRoomRepository(db).Create(room))
	message := domain.NewMessage("room-1", "When does the bridge reopen?", "", now)
	require.NoError(t, repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError), nil).Create(message))
	return dir
}

func TestRun_Lists_Rooms_And_Messages(t *testing.T) {
	req := require.New(t)
	dir := seed(t)

	var out bytes.Buffer
	req.NoError(run([]string{"-db", dir, "-what", "rooms"}, &out))
	req.Contains(out.String(), "Town hall")

	out.Reset()
	req.NoError(run([]string{"-db", dir, "-what", "messages", "-room", "room-1"}, &out))
	req.Contains(out.String(), "bridge reopen")
}

func TestRun_Rejects_Bad_Arguments(t *testing.T) {
	req := require.New(t)
	dir := seed(t)

	req.Error(run([]string{"-db", dir, "-what", "messages"}, &bytes.Buffer{}))
	req.Error(run([]string{"-db", dir, "-what", "secrets"}, &bytes.Buffer{}))
	req.Error(run([]string{"-db", dir, "-what", "messages", "-room", "room-1", "-status", "lost"}, &bytes.Buffer{}))
}
