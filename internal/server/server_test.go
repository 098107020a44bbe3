package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elfrances/grs/config"
)

const recvTimeout = 2 * time.Second

func testServerConfig() *config.Config {
	return &config.Config{
		RideName:          "TestRide",
		ControlFile:       "http://grs.net/test.shiz",
		VideoFile:         "http://grs.net/test.mp4",
		IPAddr:            "127.0.0.1",
		TCPPort:           0, // ephemeral port for tests
		MaxRiders:         10,
		ProgUpdatePeriod:  50 * time.Millisecond,
		LeaderboardPeriod: 50 * time.Millisecond,
	}
}

func startServer(t *testing.T, conf *config.Config) *Server {
	t.Helper()

	srv := NewServer(conf)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)

	return srv
}

// testClient drives the wire protocol the way the rider app does: one
// NUL-terminated flat text object per message.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialServer(t *testing.T, srv *Server) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) send(msg string) {
	c.t.Helper()
	_, err := c.conn.Write(append([]byte(msg), 0))
	require.NoError(c.t, err)
}

func (c *testClient) register(name, gender string, age int) {
	c.t.Helper()
	c.send(fmt.Sprintf(`{"msgType":"regReq","name":"%s","gender":"%s","age":"%d","ride":"TestRide"}`, name, gender, age))
}

// recv reads one raw message, or fails the test after the timeout.
func (c *testClient) recv() []byte {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(recvTimeout)))
	data, err := c.reader.ReadBytes(0)
	require.NoError(c.t, err)

	return bytes.TrimSuffix(data, []byte{0})
}

// recvKind reads one message and returns its kind plus the raw bytes.
func (c *testClient) recvKind() (string, []byte) {
	c.t.Helper()

	raw := c.recv()
	var probe struct {
		Type string `json:"type"`
	}
	require.NoError(c.t, json.Unmarshal(raw, &probe), "payload %s", raw)

	return probe.Type, raw
}

type wireRegResp struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	BibNum        string `json:"bibNum"`
	StartTime     string `json:"startTime"`
	ControlFile   string `json:"controlFile"`
	VideoFile     string `json:"videoFile"`
	ProgUpdPeriod string `json:"progUpdPeriod"`
}

type wireRider struct {
	Name     string `json:"name"`
	BibNum   string `json:"bibNum"`
	Distance string `json:"distance"`
	Power    string `json:"power"`
}

type wireLeaderboard struct {
	Type      string      `json:"type"`
	Category  string      `json:"category"`
	RiderList []wireRider `json:"riderList"`
}

func (c *testClient) recvRegResp() wireRegResp {
	c.t.Helper()

	kind, raw := c.recvKind()
	require.Equal(c.t, "regResp", kind, "payload %s", raw)

	var resp wireRegResp
	require.NoError(c.t, json.Unmarshal(raw, &resp))

	return resp
}

// awaitLeaderboard skips messages until a leaderboard satisfies the
// predicate. Broadcasts repeat every period, so transient snapshots
// (e.g. before a second rider registered) are expected and skipped.
func (c *testClient) awaitLeaderboard(match func(wireLeaderboard) bool) wireLeaderboard {
	c.t.Helper()

	deadline := time.Now().Add(recvTimeout)
	for time.Now().Before(deadline) {
		kind, raw := c.recvKind()
		if kind != "leaderboard" {
			continue
		}
		var lb wireLeaderboard
		require.NoError(c.t, json.Unmarshal(raw, &lb))
		if match(lb) {
			return lb
		}
	}

	c.t.Fatalf("no matching leaderboard message received")
	return wireLeaderboard{}
}

func TestRegistration(t *testing.T) {
	srv := startServer(t, testServerConfig())
	client := dialServer(t, srv)

	client.send(`{"msgType":"regReq","name":"Alice","gender":"female","age":"30","ride":"TestRide"}`)

	resp := client.recvRegResp()
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "1", resp.BibNum)
	assert.Equal(t, "0", resp.StartTime)
	assert.Equal(t, "http://grs.net/test.shiz", resp.ControlFile)
	assert.Equal(t, "http://grs.net/test.mp4", resp.VideoFile)
	assert.Equal(t, "0", resp.ProgUpdPeriod) // 50ms rounds down to 0 whole seconds
}

func TestLeaderboardSameCategory(t *testing.T) {
	srv := startServer(t, testServerConfig())

	alice := dialServer(t, srv)
	alice.register("Alice", "female", 30)
	require.Equal(t, "1", alice.recvRegResp().BibNum)

	bea := dialServer(t, srv)
	bea.register("Bea", "female", 32)
	require.Equal(t, "2", bea.recvRegResp().BibNum)

	both := func(lb wireLeaderboard) bool { return len(lb.RiderList) == 2 }

	for _, client := range []*testClient{alice, bea} {
		lb := client.awaitLeaderboard(both)
		assert.Equal(t, "WU35", lb.Category)
		// Most recently registered first.
		assert.Equal(t, "Bea", lb.RiderList[0].Name)
		assert.Equal(t, "2", lb.RiderList[0].BibNum)
		assert.Equal(t, "Alice", lb.RiderList[1].Name)
		assert.Equal(t, "1", lb.RiderList[1].BibNum)
	}
}

func TestProgressReflectedInLeaderboard(t *testing.T) {
	srv := startServer(t, testServerConfig())

	client := dialServer(t, srv)
	client.register("Alice", "female", 30)
	client.recvRegResp()

	client.send(`{"msgType":"progUpd","distance":"1620","power":"250"}`)

	lb := client.awaitLeaderboard(func(lb wireLeaderboard) bool {
		return len(lb.RiderList) == 1 && lb.RiderList[0].Distance == "1620"
	})
	assert.Equal(t, "250", lb.RiderList[0].Power)
}

func TestDisconnectLeavesLeaderboard(t *testing.T) {
	srv := startServer(t, testServerConfig())

	alice := dialServer(t, srv)
	alice.register("Alice", "female", 30)
	alice.recvRegResp()

	bea := dialServer(t, srv)
	bea.register("Bea", "female", 32)
	bea.recvRegResp()

	alice.awaitLeaderboard(func(lb wireLeaderboard) bool { return len(lb.RiderList) == 2 })

	bea.conn.Close()

	// Once the disconnect is processed, every subsequent cycle lists
	// Alice alone.
	lb := alice.awaitLeaderboard(func(lb wireLeaderboard) bool { return len(lb.RiderList) == 1 })
	assert.Equal(t, "Alice", lb.RiderList[0].Name)

	lb = alice.awaitLeaderboard(func(lb wireLeaderboard) bool { return len(lb.RiderList) == 1 })
	assert.Equal(t, "Alice", lb.RiderList[0].Name)
}

func TestRideStartGate(t *testing.T) {
	conf := testServerConfig()
	conf.StartTime = time.Now().UTC().Add(400 * time.Millisecond)
	srv := startServer(t, conf)

	client := dialServer(t, srv)
	client.register("Alice", "female", 30)
	resp := client.recvRegResp()
	assert.NotEqual(t, "0", resp.StartTime)

	// Progress before the start gate is rejected silently.
	client.send(`{"msgType":"progUpd","distance":"999","power":"999"}`)

	// Nothing is broadcast before the gate fires; the first message
	// after the registration response is the ride-started notice.
	kind, _ := client.recvKind()
	assert.Equal(t, "go", kind)

	client.send(`{"msgType":"progUpd","distance":"1620","power":"250"}`)
	lb := client.awaitLeaderboard(func(lb wireLeaderboard) bool {
		return len(lb.RiderList) == 1 && lb.RiderList[0].Distance == "1620"
	})
	assert.Equal(t, "WU35", lb.Category)
}

func TestSeparateCategories(t *testing.T) {
	srv := startServer(t, testServerConfig())

	alice := dialServer(t, srv)
	alice.register("Alice", "female", 30)
	alice.recvRegResp()

	zed := dialServer(t, srv)
	zed.register("Zed", "male", 61)
	zed.recvRegResp()

	// Each rider only sees their own category's standings.
	lb := alice.awaitLeaderboard(func(lb wireLeaderboard) bool { return len(lb.RiderList) > 0 })
	assert.Equal(t, "WU35", lb.Category)
	assert.Equal(t, "Alice", lb.RiderList[0].Name)

	lb = zed.awaitLeaderboard(func(lb wireLeaderboard) bool { return len(lb.RiderList) > 0 })
	assert.Equal(t, "MU65", lb.Category)
	assert.Equal(t, "Zed", lb.RiderList[0].Name)
}

func TestMaxRidersDroppedSilently(t *testing.T) {
	conf := testServerConfig()
	conf.MaxRiders = 1
	srv := startServer(t, conf)

	first := dialServer(t, srv)
	first.register("Alice", "female", 30)
	first.recvRegResp()

	// The second connection is accepted and immediately closed with
	// no protocol-level error reply.
	second := dialServer(t, srv)
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(recvTimeout)))
	_, err := second.reader.ReadByte()
	assert.Error(t, err)
}

func TestUnknownKindKeepsConnectionOpen(t *testing.T) {
	srv := startServer(t, testServerConfig())

	client := dialServer(t, srv)
	client.send(`{"msgType":"selfie","data":"..."}`)

	// Policy: unknown kinds are logged and ignored, so the client can
	// still register afterwards.
	client.register("Alice", "female", 30)
	assert.Equal(t, "1", client.recvRegResp().BibNum)
}

func TestUnparsablePayloadDropsConnection(t *testing.T) {
	srv := startServer(t, testServerConfig())

	client := dialServer(t, srv)
	client.send("complete garbage")

	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(recvTimeout)))
	_, err := client.reader.ReadByte()
	assert.Error(t, err)
}
