package internal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("BLUGE_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	setRequired(t)

	config, err := Load()

	req.NoError(err)
	req.Equal(8080, config.Port)
	req.Equal(500, config.MaxContentLength)
	req.Equal(24*time.Hour, config.AuthTokenDuration)
	req.Equal(500*time.Millisecond, config.SinkTimeout)
	req.False(config.EnforceRoomAccess)
	req.Nil(config.LimitMessages)
	req.Equal([]string{"*"}, config.AllowedOrigins())
	req.Empty(config.CensoredWordList())
	req.False(config.HasBootstrapAdmin())
}

func TestLoad_Overrides(t *testing.T) {
	req := require.New(t)
	setRequired(t)
	t.Setenv("CENSORED_WORDS", "badger, snake ,,")
	t.Setenv("REALTIME_ENFORCE_ROOM_ACCESS", "true")
	t.Setenv("LIMIT_MESSAGES", "200")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "admin@gossip.test")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "Admin123!")

	config, err := Load()

	req.NoError(err)
	req.Equal([]string{"badger", "snake"}, config.CensoredWordList())
	req.True(config.EnforceRoomAccess)
	req.Equal(200, *config.LimitMessages)
	req.True(config.HasBootstrapAdmin())
}

func TestLoad_Rejects_Invalid_Values(t *testing.T) {
	req := require.New(t)
	setRequired(t)

	t.Setenv("CHARACTER_REPLACEMENT", "**")
	_, err := Load()
	req.Error(err)

	t.Setenv("CHARACTER_REPLACEMENT", "#")
	t.Setenv("MAX_CONTENT_LENGTH", "0")
	_, err = Load()
	req.Error(err)
}

func TestLoad_Requires_Secret(t *testing.T) {
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("BLUGE_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "restored after the test")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load()
	require.Error(t, err)
}
