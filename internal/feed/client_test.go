package feed

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func closedKline(startMs int64, open, high, low, closePrice, volume string) klineEvent {
	return klineEvent{
		Event:  "kline",
		Symbol: "BTCUSDT",
		Kline: klinePayload{
			StartTime: startMs,
			Interval:  "1m",
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Closed:    true,
		},
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		holdOpen(conn)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), &Config{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Second,
		PingInterval:      time.Minute,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Second,
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestClient_EmitsOnlyClosedCandles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// A non-kline event: ignored.
		conn.WriteJSON(map[string]string{"e": "aggTrade"})

		// A forming candle: ignored.
		forming := closedKline(1709285400000, "100", "101", "99", "100.5", "1200")
		forming.Kline.Closed = false
		conn.WriteJSON(forming)

		// The closed candle the client must emit.
		conn.WriteJSON(closedKline(1709285400000, "100", "101", "99", "100.5", "1200"))

		holdOpen(conn)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), &Config{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Second,
		PingInterval:      time.Minute,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Second,
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case bar := <-client.Bars():
		want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
		if !bar.Timestamp.Equal(want) {
			t.Errorf("Expected timestamp %v, got %v", want, bar.Timestamp)
		}
		if bar.Open != 100 || bar.High != 101 || bar.Low != 99 || bar.Close != 100.5 {
			t.Errorf("Expected OHLC 100/101/99/100.5, got %v/%v/%v/%v",
				bar.Open, bar.High, bar.Low, bar.Close)
		}
		if bar.Volume != 1200 {
			t.Errorf("Expected volume 1200, got %v", bar.Volume)
		}
		if bar.HasSpread {
			t.Error("Feed bars must not carry a spread")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for closed candle")
	}

	// The forming candle and the non-kline event must not have queued bars.
	select {
	case bar, ok := <-client.Bars():
		if ok {
			t.Errorf("Expected no further bars, got %+v", bar)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SkipsMalformedCandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteJSON(closedKline(1709285400000, "not_a_number", "101", "99", "100.5", "1200"))
		conn.WriteJSON(closedKline(1709285460000, "100.5", "102", "100", "101.5", "900"))

		holdOpen(conn)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), &Config{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Second,
		PingInterval:      time.Minute,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Second,
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case bar := <-client.Bars():
		if bar.Open != 100.5 {
			t.Errorf("Expected the well-formed candle (open 100.5), got open %v", bar.Open)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for candle")
	}
}

func TestClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		holdOpen(conn)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), &Config{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Second,
		PingInterval:      time.Minute,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Second,
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// The bars channel must be closed so consumers can range over it.
	if _, ok := <-client.Bars(); ok {
		t.Error("Expected bars channel to be closed")
	}

	// Double close is safe.
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestClient_ReconnectAndResume(t *testing.T) {
	var connCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		if connCount.Add(1) == 1 {
			// First connection dies immediately.
			conn.Close()
			return
		}

		defer conn.Close()
		conn.WriteJSON(closedKline(1709285400000, "100", "101", "99", "100.5", "1200"))
		holdOpen(conn)
	}))
	defer server.Close()

	var reconnects atomic.Int32

	client, err := NewClient(context.Background(), wsURL(server), &Config{
		ReconnectDelay:    50 * time.Millisecond,
		MaxReconnectDelay: 200 * time.Millisecond,
		PingInterval:      time.Minute,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Second,
		OnReconnect:       func() { reconnects.Add(1) },
		Logger:            quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	select {
	case bar := <-client.Bars():
		if bar.Open != 100 {
			t.Errorf("Expected open 100 after reconnect, got %v", bar.Open)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for candle after reconnect")
	}

	if reconnects.Load() == 0 {
		t.Error("Expected OnReconnect to have fired")
	}
	if connCount.Load() < 2 {
		t.Errorf("Expected at least 2 connections, got %d", connCount.Load())
	}
}
