package adminapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/store"
)

const testToken = "test-token"

func startTestServer(t *testing.T, s *store.Store) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { lis.Close() })

	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryServerAuth(testToken)))
	impl := &Server{
		Store:      s,
		Bans:       ban.New(s),
		Broadcast:  broadcast.New(s, func(store.UserID, string) {}),
		ServerName: "hub.example",
		Network:    "ExampleNet",
	}
	Register(gs, impl)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(bearerCredentials{token: testToken}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &Client{conn: conn}
}

func TestStatsReportsCountsFromStore(t *testing.T) {
	s := store.New()
	u := &store.User{ID: store.NewUserID(), Nick: "alice", User: "a", Host: "h", Local: true}
	require.NoError(t, s.AddUser(u))
	s.AddMember(u.ID, "#r", nil)

	c := startTestServer(t, s)
	resp, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hub.example", resp.ServerName)
	assert.Equal(t, 1, resp.Clients)
	assert.Equal(t, 1, resp.Channels)
}

func TestBanThenRetroDisconnect(t *testing.T) {
	s := store.New()
	u := &store.User{ID: store.NewUserID(), Nick: "bob", User: "b", Host: "evil.example", Local: true}
	require.NoError(t, s.AddUser(u))

	c := startTestServer(t, s)
	resp, err := c.Ban(context.Background(), &BanRequest{Kind: "K", Mask: "*!*@evil.example", Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Contains(t, resp.Disconnected, "bob")

	_, ok := s.GetUserByNick("bob")
	assert.False(t, ok)
}

func TestKillRemovesUser(t *testing.T) {
	s := store.New()
	u := &store.User{ID: store.NewUserID(), Nick: "carol", User: "c", Host: "h", Local: true}
	require.NoError(t, s.AddUser(u))

	c := startTestServer(t, s)
	resp, err := c.Kill(context.Background(), &KillRequest{Nick: "carol", Reason: "bye"})
	require.NoError(t, err)
	assert.True(t, resp.Killed)

	_, ok := s.GetUserByNick("carol")
	assert.False(t, ok)
}

func TestUnauthenticatedCallIsRejected(t *testing.T) {
	s := store.New()
	lis := bufconn.Listen(1024 * 1024)
	t.Cleanup(func() { lis.Close() })

	gs := grpc.NewServer(grpc.UnaryInterceptor(UnaryServerAuth(testToken)))
	Register(gs, &Server{Store: s, Bans: ban.New(s), ServerName: "hub"})
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &Client{conn: conn}
	_, err = c.Stats(context.Background())
	assert.ErrorIs(t, err, errUnauthorized)
}
