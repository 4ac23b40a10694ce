package binance

import (
	"testing"

	domrepo "HelixPull/internal/domain/repository"
)

func TestParseCandle(t *testing.T) {
	raw := []byte(`{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"o":"45000.10","h":"45120.00","l":"44980.00","c":"45100.50","v":"12.345","n":321,"x":false}}`)

	c, err := ParseCandle(raw, "BTCUSDT", domrepo.TF1m)
	if err != nil {
		t.Fatalf("ParseCandle: %v", err)
	}
	if c.OpenTime != 1700000000000 || c.Open != "45000.10" || c.Close != "45100.50" {
		t.Fatalf("unexpected candle: %+v", c)
	}
	if c.IsClosed {
		t.Fatalf("candle should be open")
	}
	if c.Timeframe != "1m" || c.Symbol != "BTCUSDT" {
		t.Fatalf("symbol/timeframe not carried: %+v", c)
	}
}

func TestParseCandleMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`not json`),
		[]byte(`{}`),
		[]byte(`{"k":{"t":0,"o":"1","c":"2"}}`),
		[]byte(`{"k":{"t":1700000000000,"o":"","c":"2"}}`),
	}
	for _, raw := range cases {
		if _, err := ParseCandle(raw, "BTCUSDT", domrepo.TF1m); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestParseTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","s":"ETHUSDT","t":88123400,"p":"2410.55","q":"0.75","T":1700000012345,"m":true}`)

	tr, err := ParseTrade(raw, "ETHUSDT")
	if err != nil {
		t.Fatalf("ParseTrade: %v", err)
	}
	if tr.Price != "2410.55" || tr.Quantity != "0.75" || tr.TradeID != 88123400 {
		t.Fatalf("unexpected trade: %+v", tr)
	}
	if !tr.IsBuyerMaker {
		t.Fatalf("buyer-maker flag lost")
	}
}

func TestParseTradeMalformed(t *testing.T) {
	cases := [][]byte{
		[]byte(`{`),
		[]byte(`{"p":"","q":"1","T":1}`),
		[]byte(`{"p":"1","q":"1","T":0}`),
	}
	for _, raw := range cases {
		if _, err := ParseTrade(raw, "ETHUSDT"); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestStreamName(t *testing.T) {
	ks := NewCandleStream("wss://example/ws", "BTCUSDT", domrepo.TF5m, 0)
	if ks.Name() != "BTCUSDT@kline_5m" {
		t.Fatalf("candle stream name = %q", ks.Name())
	}
	ts := NewTradeStream("wss://example/ws", "ETHUSDT", 0)
	if ts.Name() != "ETHUSDT@trade" {
		t.Fatalf("trade stream name = %q", ts.Name())
	}
}
