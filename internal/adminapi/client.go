package adminapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Client is a thin typed wrapper around a gRPC ClientConn dialed with the
// JSON codec, used by cmd/adminctl. Grounded on the teacher's own
// grpc.Dial/grpc.ClientConn usage for inter-server peering
// (irc/peering.go connectToPeers), repointed at this admin-control
// concern.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to an ircd admin listener at addr, authenticating every
// call with token.
func Dial(addr, token string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(bearerCredentials{token: token}),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("adminapi: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
	if err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return nil, errUnauthorized
		}
		return nil, fmt.Errorf("adminapi: %s: %w", method, err)
	}
	return resp, nil
}

// Stats calls the Stats RPC.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	return invoke[StatsRequest, StatsResponse](ctx, c, "Stats", &StatsRequest{})
}

// Channels calls the Channels RPC.
func (c *Client) Channels(ctx context.Context) (*ChannelsResponse, error) {
	return invoke[ChannelsRequest, ChannelsResponse](ctx, c, "Channels", &ChannelsRequest{})
}

// Clients calls the Clients RPC.
func (c *Client) Clients(ctx context.Context) (*ClientsResponse, error) {
	return invoke[ClientsRequest, ClientsResponse](ctx, c, "Clients", &ClientsRequest{})
}

// Peers calls the Peers RPC.
func (c *Client) Peers(ctx context.Context) (*PeersResponse, error) {
	return invoke[PeersRequest, PeersResponse](ctx, c, "Peers", &PeersRequest{})
}

// Ban calls the Ban RPC.
func (c *Client) Ban(ctx context.Context, req *BanRequest) (*BanResponse, error) {
	return invoke[BanRequest, BanResponse](ctx, c, "Ban", req)
}

// Unban calls the Unban RPC.
func (c *Client) Unban(ctx context.Context, req *UnbanRequest) (*UnbanResponse, error) {
	return invoke[UnbanRequest, UnbanResponse](ctx, c, "Unban", req)
}

// Kill calls the Kill RPC.
func (c *Client) Kill(ctx context.Context, req *KillRequest) (*KillResponse, error) {
	return invoke[KillRequest, KillResponse](ctx, c, "Kill", req)
}

// Squit calls the Squit RPC.
func (c *Client) Squit(ctx context.Context, req *SquitRequest) (*SquitResponse, error) {
	return invoke[SquitRequest, SquitResponse](ctx, c, "Squit", req)
}
