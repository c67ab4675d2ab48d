package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-trader/internal/config"
	"auction-trader/internal/models"
	"auction-trader/internal/strategy"
	"auction-trader/internal/stream"
)

func paperConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Trading.Mode = "paper"
	cfg.Store.Path = filepath.Join(t.TempDir(), "orders.db")
	cfg.Notifications.Enabled = false
	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(cfg, zerolog.Nop())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseLegFlag(t *testing.T) {
	spec, err := parseLegFlag("BUY:C:1900:2")
	require.NoError(t, err)
	assert.Equal(t, strategy.LegSpec{Kind: models.KindCall, Side: models.SideBuy, Strike: "1900", Size: "2", Linked: true}, spec)

	spec, err = parseLegFlag("s:bp:1800:10:0.35")
	require.NoError(t, err)
	assert.Equal(t, models.KindBinaryPut, spec.Kind)
	assert.Equal(t, models.SideSell, spec.Side)
	assert.Equal(t, "0.35", spec.UnitPrice)

	spec, err = parseLegFlag("BUY:F:NEXT:0.5")
	require.NoError(t, err)
	assert.Equal(t, models.KindForward, spec.Kind)
	assert.Equal(t, models.TenorNextAuction, spec.Tenor)
	assert.Equal(t, strategy.NoStrike, spec.Strike)

	for _, bad := range []string{"BUY:C:1900", "HOLD:C:1900:1", "BUY:X:1900:1", "BUY:F:LATER:1", "BUY:C:1:1:1:1"} {
		_, err := parseLegFlag(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAlertFlag(t *testing.T) {
	cond, target, err := parseAlertFlag("cross_below:82.5")
	require.NoError(t, err)
	assert.Equal(t, stream.AlertConditionCrossBelow, cond)
	assert.True(t, target.Equal(decimal.RequireFromString("82.5")))

	_, _, err = parseAlertFlag("below")
	assert.Error(t, err)
	_, _, err = parseAlertFlag("sideways:1")
	assert.Error(t, err)
	_, _, err = parseAlertFlag("above:abc")
	assert.Error(t, err)
}

func TestSamplePayoffKeepsEnds(t *testing.T) {
	points := make([]models.PayoffPoint, 101)
	for i := range points {
		points[i].Spot = decimal.NewFromInt(int64(i))
	}
	sampled := samplePayoff(points, 21)
	require.Len(t, sampled, 21)
	assert.True(t, sampled[0].Spot.Equal(decimal.Zero))
	assert.True(t, sampled[20].Spot.Equal(decimal.NewFromInt(100)))
	assert.True(t, sampled[10].Spot.Equal(decimal.NewFromInt(50)))

	assert.Len(t, samplePayoff(points[:5], 21), 5)
}

func TestTemplatesCommand(t *testing.T) {
	out, err := run(t, paperConfig(t), "strategy", "templates", "--family", "structured")
	require.NoError(t, err)
	assert.Contains(t, out, "bet-inside")
	assert.NotContains(t, out, "iron-condor")
}

func TestBuildCommandPricesPaperSpread(t *testing.T) {
	out, err := run(t, paperConfig(t), "--json", "strategy", "build",
		"--leg", "BUY:C:1900:1", "--leg", "SELL:C:2000:1")
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, models.DraftPriced, snap.State)
	require.Len(t, snap.Legs, 2)
	require.NotNil(t, snap.Draft)
	assert.True(t, snap.Draft.Complete)
	assert.True(t, snap.Draft.TotalNetPrice.IsPositive(), "a call spread is a debit")
	assert.NotNil(t, snap.Summary)
}

func TestBuildCommandIncompleteStrategy(t *testing.T) {
	out, err := run(t, paperConfig(t), "strategy", "build", "--leg", "BUY:C::1")
	require.NoError(t, err)
	assert.Contains(t, out, "incomplete")
}

func TestBuildSubmitJournalsOrder(t *testing.T) {
	cfg := paperConfig(t)

	out, err := run(t, cfg, "--json", "strategy", "build", "--template", "straddle", "--submit")
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, models.DraftSubmitted, snap.State)
	require.NotNil(t, snap.Submitted)

	out, err = run(t, cfg, "--json", "orders", "list")
	require.NoError(t, err)
	var orders []models.SubmittedOrder
	require.NoError(t, json.Unmarshal([]byte(out), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, snap.Submitted.ClientOrderID, orders[0].ClientOrderID)
	assert.Equal(t, "Straddle", orders[0].Description)

	out, err = run(t, cfg, "orders", "show", orders[0].ClientOrderID)
	require.NoError(t, err)
	assert.Contains(t, out, "Straddle")
}

func TestQuoteCommand(t *testing.T) {
	out, err := run(t, paperConfig(t), "--json", "quote", "call", "1900")
	require.NoError(t, err)

	var rows []quoteRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Bid)
	require.NotNil(t, rows[0].Ask)
	assert.True(t, rows[0].Ask.GreaterThan(*rows[0].Bid))
}

func TestQuoteChainCommand(t *testing.T) {
	cfg := paperConfig(t)
	out, err := run(t, cfg, "--json", "quote", "bc")
	require.NoError(t, err)

	var rows []quoteRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, len(cfg.Paper.Strikes))
	for i, r := range rows {
		assert.Empty(t, r.Error)
		require.NotNil(t, r.Strike)
		require.NotNil(t, r.Bid)
		require.NotNil(t, r.Ask)
		assert.True(t, r.Ask.GreaterThan(*r.Bid), "strike %s", r.Strike)
		if i > 0 {
			assert.True(t, r.Strike.GreaterThan(*rows[i-1].Strike), "chain stays in strike order")
		}
	}
}

func TestUnknownTemplate(t *testing.T) {
	_, err := run(t, paperConfig(t), "strategy", "build", "--template", "moonshot")
	assert.ErrorContains(t, err, "unknown template")
}
