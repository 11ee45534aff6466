package view

import (
	"bytes"
	"html/template"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin", "9xQeWv…VFin"},
		{"12345678901", "123456…8901"},
		{"1234567890", "1234567890"},
		{"abc", "abc"},
		{"", "N/A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAddress(tt.in), tt.in)
	}
}

func TestFormatAddress_LengthInvariant(t *testing.T) {
	for _, addr := range []string{
		"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"So11111111111111111111111111111111111111112",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	} {
		got := FormatAddress(addr)
		assert.Equal(t, addr[:6], got[:6])
		assert.Equal(t, addr[len(addr)-4:], got[len(got)-4:])
		assert.Equal(t, 6+len("…")+4, len(got))
	}
}

func TestFormatOptionalAddress(t *testing.T) {
	assert.Equal(t, "N/A", FormatOptionalAddress(nil))
	addr := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	assert.Equal(t, "9xQeWv…VFin", FormatOptionalAddress(&addr))
}

func TestShortSignature(t *testing.T) {
	sig := "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
	assert.Equal(t, "5j7s6NiJS3...YStRW5Dia7", ShortSignature(sig))
	assert.Equal(t, "short", ShortSignature("short"))
}

func TestFormatSOL(t *testing.T) {
	assert.Equal(t, "1.5000", FormatSOL(decimal.New(1_500_000_000, -9)))
	assert.Equal(t, "0.0000", FormatSOL(decimal.Zero))
	assert.Equal(t, "0.0001", FormatSOL(decimal.RequireFromString("0.00009")))
	assert.Equal(t, "N/A", FormatOptionalSOL(nil))
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "1,234.568", FormatTokenAmount(decimal.RequireFromString("1234.5678")))
	assert.Equal(t, "1.25", FormatTokenAmount(decimal.RequireFromString("1.25")))
	assert.Equal(t, "1,000,000", FormatTokenAmount(decimal.New(1_000_000, 0)))
	assert.Equal(t, "0", FormatTokenAmount(decimal.Zero))
	assert.Equal(t, "-2.5", FormatTokenAmount(decimal.RequireFromString("-2.5")))
}

func TestFormatTokenAmount_BeyondFloatPrecision(t *testing.T) {
	// 2^64-1 base units at 0 and 3 decimals
	assert.Equal(t, "18,446,744,073,709,551,615", FormatTokenAmount(decimal.RequireFromString("18446744073709551615")))
	assert.Equal(t, "18,446,744,073,709,551.615", FormatTokenAmount(decimal.RequireFromString("18446744073709551.615")))
}

func TestFormatHistoryAmount(t *testing.T) {
	sol := decimal.RequireFromString("0.25")
	usdc := decimal.RequireFromString("1234.5")
	symbol := "USDC"
	mint := "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

	assert.Equal(t, "N/A", FormatHistoryAmount(nil, nil, nil))
	assert.Equal(t, "0.2500", FormatHistoryAmount(&sol, nil, nil))
	assert.Equal(t, "1,234.5 USDC", FormatHistoryAmount(&usdc, &symbol, &mint))
	assert.Equal(t, "1,234.5 EPjFWd…Dt1v", FormatHistoryAmount(&usdc, nil, &mint))
}

func TestTokenLabel(t *testing.T) {
	usdc := "USDC"
	assert.Equal(t, "USDC", TokenLabel(&usdc, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	assert.Equal(t, "EPjFWd…Dt1v", TokenLabel(nil, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 minutes ago", RelativeTime(now.Add(-3*time.Minute).UnixMilli(), now))
	assert.Equal(t, "2 hours ago", RelativeTime(now.Add(-2*time.Hour).UnixMilli(), now))
	assert.Equal(t, "N/A", RelativeTime(0, now))
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t,
		"https://explorer.solana.com/tx/abc123?cluster=devnet",
		ExplorerURL("explorer.solana.com", "abc123", "devnet"),
	)
}

func TestFuncMap(t *testing.T) {
	tmpl := template.Must(template.New("t").Funcs(FuncMap("explorer.solana.com", "devnet")).
		Parse(`{{address .Addr}} {{explorer .Sig}} {{copyAckMs}}`))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]string{
		"Addr": "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"Sig":  "abc",
	}))
	assert.Equal(t, "9xQeWv…VFin https://explorer.solana.com/tx/abc?cluster=devnet 1500", buf.String())
}
