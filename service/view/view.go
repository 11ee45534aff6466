// Package view formats dashboard state for display.
package view

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// CopyAckWindow is how long a "copied" acknowledgment stays visible.
const CopyAckWindow = 1500 * time.Millisecond

// NotAvailable is shown for missing values.
const NotAvailable = "N/A"

// FormatAddress truncates long addresses to first6…last4.
func FormatAddress(addr string) string {
	switch {
	case addr == "":
		return NotAvailable
	case len(addr) > 10:
		return addr[:6] + "…" + addr[len(addr)-4:]
	default:
		return addr
	}
}

// FormatOptionalAddress formats a nullable address.
func FormatOptionalAddress(addr *string) string {
	if addr == nil {
		return NotAvailable
	}
	return FormatAddress(*addr)
}

// ShortSignature renders a signature as first10...last10.
func ShortSignature(sig string) string {
	if len(sig) <= 23 {
		return sig
	}
	return sig[:10] + "..." + sig[len(sig)-10:]
}

// FormatSOL renders a SOL amount with four decimals, e.g. "1.5000".
func FormatSOL(amount decimal.Decimal) string {
	return amount.StringFixed(4)
}

// FormatOptionalSOL renders a nullable amount, N/A when unresolved.
func FormatOptionalSOL(amount *decimal.Decimal) string {
	if amount == nil {
		return NotAvailable
	}
	return FormatSOL(*amount)
}

// FormatTokenAmount renders a token amount with thousands separators and at
// most three fraction digits.
func FormatTokenAmount(amount decimal.Decimal) string {
	rounded := amount.Round(3)
	abs := rounded.Abs()
	out := humanize.BigComma(abs.BigInt())
	if _, frac, ok := strings.Cut(abs.String(), "."); ok {
		out += "." + frac
	}
	if rounded.IsNegative() {
		out = "-" + out
	}
	return out
}

// FormatHistoryAmount renders a resolved history amount. Native SOL shows
// bare like FormatSOL; token amounts carry their label.
func FormatHistoryAmount(amount *decimal.Decimal, symbol, mint *string) string {
	if amount == nil || mint == nil {
		return FormatOptionalSOL(amount)
	}
	return FormatTokenAmount(*amount) + " " + TokenLabel(symbol, *mint)
}

// TokenLabel is the symbol when known, otherwise the shortened mint.
func TokenLabel(symbol *string, mint string) string {
	if symbol != nil && *symbol != "" {
		return *symbol
	}
	return FormatAddress(mint)
}

// RelativeTime renders an epoch-milliseconds timestamp relative to now,
// e.g. "3 minutes ago".
func RelativeTime(timestampMs int64, now time.Time) string {
	if timestampMs <= 0 {
		return NotAvailable
	}
	return humanize.RelTime(time.UnixMilli(timestampMs), now, "ago", "from now")
}

// ExplorerURL links a signature on a block explorer.
func ExplorerURL(host, signature, cluster string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     "/tx/" + signature,
		RawQuery: url.Values{"cluster": []string{cluster}}.Encode(),
	}
	return u.String()
}

// FuncMap exposes the formatters to html/template.
func FuncMap(explorerHost, cluster string) template.FuncMap {
	return template.FuncMap{
		"address":     FormatAddress,
		"optAddress":  FormatOptionalAddress,
		"shortSig":    ShortSignature,
		"sol":         FormatSOL,
		"optSOL":      FormatOptionalSOL,
		"tokenAmount": FormatTokenAmount,
		"tokenLabel":  TokenLabel,
		"txAmount":    FormatHistoryAmount,
		"relTime": func(ms int64) string {
			return RelativeTime(ms, time.Now())
		},
		"explorer": func(sig string) string {
			return ExplorerURL(explorerHost, sig, cluster)
		},
		"copyAckMs": func() int64 {
			return CopyAckWindow.Milliseconds()
		},
	}
}
