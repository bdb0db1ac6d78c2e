// Command ws-smoke is a CI-friendly end-to-end smoke test for a running
// Courier instance.
//
// It validates:
//   - user registration over REST
//   - websocket handshake, subprotocol selection, and bearer auth
//   - conversation creation
//   - send_message -> message_received fanout to both participants
//   - the automatic sent -> delivered transition for online recipients
//   - mark_as_read -> message_read propagation
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "courier/contracts/realtime/v1"

	"github.com/coder/websocket"
)

const (
	subprotocol  = "courier.realtime.v1"
	maxReadBytes = 1 << 20
)

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "Courier HTTP base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if _, err := url.Parse(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}

	suffix := fmt.Sprintf("%d-%04d", time.Now().Unix(), rand.Intn(10000))
	alice := mustRegister(*baseURL, "alice-"+suffix+"@smoke.test", "Alice Smoke", *timeout)
	bob := mustRegister(*baseURL, "bob-"+suffix+"@smoke.test", "Bob Smoke", *timeout)
	logf(*verbose, "registered alice=%s bob=%s", alice.userID, bob.userID)

	convID := mustStartConversation(*baseURL, alice.token, bob.userID, *timeout)
	logf(*verbose, "conversation=%s", convID)

	wsURL := strings.Replace(*baseURL, "http", "ws", 1) + "/ws"
	a := mustDial(wsURL, *origin, alice.token, *timeout)
	defer a.close()
	b := mustDial(wsURL, *origin, bob.token, *timeout)
	defer b.close()

	mustSend(a, v1.TypeSendMessage, v1.SendMessagePayload{
		ConversationID: convID,
		Kind:           v1.KindText,
		Text:           "hello from the smoke test",
	}, *timeout)

	recvA := mustAwait[v1.MessageReceivedPayload](a, v1.TypeMessageReceived, *timeout)
	recvB := mustAwait[v1.MessageReceivedPayload](b, v1.TypeMessageReceived, *timeout)
	if recvA.Message.ID != recvB.Message.ID {
		fatalf("fanout mismatch: %s vs %s", recvA.Message.ID, recvB.Message.ID)
	}
	logf(*verbose, "message fanned out id=%s", recvA.Message.ID)

	// Bob is online, so the server flips sent -> delivered on its own.
	status := mustAwait[v1.MessageStatusUpdatedPayload](a, v1.TypeMessageStatusUpdated, *timeout)
	if status.MessageID != recvA.Message.ID || status.Status != v1.StatusDelivered {
		fatalf("expected delivered for %s, got %s/%s", recvA.Message.ID, status.MessageID, status.Status)
	}

	mustSend(b, v1.TypeMarkAsRead, v1.MarkAsReadPayload{
		ConversationID: convID,
		MessageID:      recvB.Message.ID,
	}, *timeout)

	read := mustAwait[v1.MessageReadPayload](a, v1.TypeMessageRead, *timeout)
	if read.MessageID != recvA.Message.ID || read.ReadBy != bob.userID {
		fatalf("read mismatch: %+v", read)
	}

	fmt.Println("ws-smoke: OK")
}

// ---- REST helpers ----

type account struct {
	userID string
	token  string
}

func mustRegister(base, email, name string, timeout time.Duration) account {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"name":     name,
		"password": "smoke-test-password",
	})

	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	postJSON(base+"/auth/register", "", body, http.StatusCreated, &out, timeout)
	if out.Token == "" || out.User.ID == "" {
		fatalf("register %s: empty token or user id", email)
	}
	return account{userID: out.User.ID, token: out.Token}
}

func mustStartConversation(base, token, otherID string, timeout time.Duration) string {
	body, _ := json.Marshal(map[string]string{"user_id": otherID})

	var out struct {
		ID string `json:"id"`
	}
	postJSON(base+"/api/v1/conversations", token, body, http.StatusCreated, &out, timeout)
	if out.ID == "" {
		fatalf("start conversation: empty id")
	}
	return out.ID
}

func postJSON(u, token string, body []byte, wantStatus int, out any, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		fatalf("build request %s: %v", u, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("POST %s: %v", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		fatalf("POST %s: status %d want %d", u, resp.StatusCode, wantStatus)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fatalf("POST %s: decode: %v", u, err)
	}
}

// ---- websocket helpers ----

type smokeClient struct {
	conn  *websocket.Conn
	inbox chan v1.Envelope
	errCh chan error
}

func mustDial(wsURL, origin, token string, timeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	headers := http.Header{}
	headers.Set("Origin", origin)
	headers.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   headers,
	})
	if err != nil {
		fatalf("dial %s: %v", wsURL, err)
	}
	if got := conn.Subprotocol(); got != subprotocol {
		fatalf("subprotocol: got %q want %q", got, subprotocol)
	}
	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		conn:  conn,
		inbox: make(chan v1.Envelope, 64),
		errCh: make(chan error, 1),
	}
	go c.readLoop()
	return c
}

func (c *smokeClient) readLoop() {
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.errCh <- err
			return
		}
		var env v1.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.errCh <- err
			return
		}
		c.inbox <- env
	}
}

func (c *smokeClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}

func mustSend(c *smokeClient, typ string, payload any, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	raw, _ := json.Marshal(payload)
	env := v1.Envelope{V: v1.Version, Type: typ, TS: time.Now().UTC(), Payload: raw}
	data, _ := json.Marshal(env)
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		fatalf("write %s: %v", typ, err)
	}
}

// mustAwait drains the inbox until an envelope of the wanted type arrives.
func mustAwait[T any](c *smokeClient, typ string, timeout time.Duration) T {
	deadline := time.After(timeout)
	for {
		select {
		case env := <-c.inbox:
			if env.Type == v1.TypeError {
				fatalf("server error while waiting for %s: %s", typ, string(env.Payload))
			}
			if env.Type != typ {
				continue
			}
			var out T
			if err := json.Unmarshal(env.Payload, &out); err != nil {
				fatalf("decode %s: %v", typ, err)
			}
			return out
		case err := <-c.errCh:
			fatalf("read while waiting for %s: %v", typ, err)
		case <-deadline:
			fatalf("timeout waiting for %s", typ)
		}
	}
}

// ---- misc ----

func logf(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
