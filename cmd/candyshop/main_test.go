package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coldbell/candyshop/internal/failure"
	"github.com/coldbell/candyshop/internal/journal"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersAllCommands(t *testing.T) {
	root := newRootCmd(&globalOpts{})
	want := []string{
		"sell", "cancel", "buy", "sellMany", "cancelMany",
		"createAuction", "cancelAuction", "makeBid", "withdrawBid", "buyNow", "settleAndDistribute",
		"auction", "watchAuction", "commitEditionDropNft", "mintPrint",
		"createShop", "withdrawTreasury", "history",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("env"))
	assert.NotNil(t, root.PersistentFlags().Lookup("keypair"))
}

func TestDescribeError(t *testing.T) {
	err := fmt.Errorf("sell abc: %w", failure.ErrTradeStateExists)
	assert.Equal(t, "TradeStateExists: sell abc: trade state exists", describeError(err))
	assert.Equal(t, "error: boom", describeError(fmt.Errorf("boom")))

	err = fmt.Errorf("confirm sell: %w", failure.ErrTimeout)
	assert.Equal(t, "Timeout (retryable): confirm sell: "+failure.ErrTimeout.Error(), describeError(err))
}

func TestParseTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	got, err := parseTime("now", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseTime("1700000000", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000), got.Unix())

	got, err = parseTime("2026-05-02T10:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(26*time.Hour), got)

	_, err = parseTime("tomorrow", now)
	assert.Error(t, err)
}

func TestParseOrderArg(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	got, price, err := parseOrderArg(mint.String() + ":1.25")
	require.NoError(t, err)
	assert.Equal(t, mint, got)
	assert.Equal(t, "1.25", price)

	_, _, err = parseOrderArg(mint.String())
	assert.Error(t, err)

	_, _, err = parseOrderArg("nope:1")
	assert.ErrorIs(t, err, failure.ErrInvalidKey)
}

func TestParseOptionalKey(t *testing.T) {
	key, err := parseOptionalKey("token-account", "  ")
	require.NoError(t, err)
	assert.True(t, key.IsZero())

	_, err = parseKey("seller", "xyz")
	assert.ErrorIs(t, err, failure.ErrInvalidKey)
}

func TestHistoryPrintsJournal(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "journal.db")
	t.Setenv("DOTENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("CONFIG_PHASE", "cli-test-none")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CANDYSHOP_JOURNAL_DRIVER", "sqlite")
	t.Setenv("CANDYSHOP_JOURNAL_DSN", dsn)
	t.Setenv("CANDYSHOP_LOG_OUTPUT", "none")

	ctx := context.Background()
	store, err := journal.Open(ctx, journal.DriverSQLite, dsn)
	require.NoError(t, err)
	address := solana.NewWallet().PublicKey()
	_, err = store.Record(ctx, journal.Entry{
		Operation: "sell",
		Address:   address,
		Status:    journal.StatusRejected,
		ErrorKind: "TradeStateExists",
		Error:     "trade state exists",
		CreatedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	root := newRootCmd(&globalOpts{})
	root.SetOut(&out)
	root.SetArgs([]string{"history", "--address", address.String()})
	require.NoError(t, root.ExecuteContext(ctx))

	line := strings.TrimSpace(out.String())
	assert.Equal(t, "2026-05-01T08:00:00Z  rejected  sell  "+address.String()+"  TradeStateExists: trade state exists", line)
}
