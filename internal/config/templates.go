package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Auction Trader Configuration

[trading]
# Trading mode: "live" or "paper"
mode = "paper"
# Underlying currency pair
currency_pair = "WETH/USDC"
# Decimal places used for net price rounding
strike_precision = 4
# Maximum legs in a custom strategy
max_legs = 5

[pricing]
# Pricing backend base URL
url = "https://app.ithaca.finance"
timeout = "10s"
# Requests per second and burst for the pricing backend
rate_limit = 10.0
burst = 5
retry_max = 2
# How often an open draft is re-priced
refresh_interval = "30s"

[pricing.spreads]
# Total bid/ask spread in price currency units
vanilla = 5.25
binary = 0.05
forward = 1.05
minimum_price = 0.01

[sdk]
# Trading API (live mode)
api_url = ""
ws_url = ""
timeout = "15s"

[payoff]
# Samples across the payoff chart
points = 101
# Range padding as a fraction of the highest strike
padding = 0.2

[store]
# Order journal (defaults to orders.db next to this file)
path = ""

[logging]
level = "info"
file = true
console = true

[notifications]
enabled = true
# Notification level: all, orders_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""

[paper]
# Synthetic market used in paper mode
spot = 1900.0
strikes = [1600.0, 1700.0, 1800.0, 1900.0, 2000.0, 2100.0, 2200.0]
expiry_days = 7
time_value = 40.0
fee_rate = 0.0004
lock_multiple = 1.0
`

const credentialsTemplate = `# Auction Trader Credentials
# WARNING: Keep this file secure! Do not commit to version control.

api_key = ""
`

func createTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}

	return nil
}
