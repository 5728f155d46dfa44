package adminapi

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/metrics"
	"github.com/presbrey/ircd/internal/peer"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// Server implements the admin control plane's methods against a running
// daemon's collaborators. One Server is shared by every connected
// adminctl client; it never mutates anything a client couldn't already
// do through IRC itself (OPER + KILL/KLINE/SQUIT) — this is a second
// front door onto the same authority, not an escalation of it.
type Server struct {
	Store      *store.Store
	Bans       *ban.Enforcer
	Broadcast  *broadcast.Engine
	Peers      *peer.Manager
	Metrics    *metrics.Collectors
	ServerName string
	Network    string
}

func kindFromString(s string) (ban.Kind, error) {
	switch s {
	case "G":
		return ban.Global, nil
	case "K":
		return ban.LocalKill, nil
	case "D":
		return ban.DNS, nil
	case "X":
		return ban.Extended, nil
	default:
		return 0, fmt.Errorf("adminapi: unknown ban kind %q", s)
	}
}

// Stats reports server-wide counters, grounded on
// irc/server/webportal.go's handleAPIStats.
func (s *Server) Stats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	resp := &StatsResponse{
		ServerName: s.ServerName,
		Network:    s.Network,
		Clients:    len(s.Store.AllUsers()),
		Channels:   len(s.Store.AllChannels()),
		Peers:      len(s.Store.AllServers()),
	}
	if s.Metrics != nil {
		resp.UptimeSecs = s.Metrics.Uptime().Seconds()
	}
	return resp, nil
}

// Channels lists every channel, grounded on handleAPIChannels.
func (s *Server) Channels(ctx context.Context, req *ChannelsRequest) (*ChannelsResponse, error) {
	resp := &ChannelsResponse{}
	for _, ch := range s.Store.AllChannels() {
		resp.Channels = append(resp.Channels, ChannelInfo{
			Name:    ch.Name,
			Topic:   ch.Topic,
			Members: len(ch.Members),
			Modes:   channelModeString(ch),
		})
	}
	return resp, nil
}

func channelModeString(ch *store.Channel) string {
	out := "+"
	for m, set := range ch.Modes {
		if set {
			out += string(m)
		}
	}
	return out
}

// Clients lists every user known to the store, local and remote.
func (s *Server) Clients(ctx context.Context, req *ClientsRequest) (*ClientsResponse, error) {
	resp := &ClientsResponse{}
	for _, u := range s.Store.AllUsers() {
		resp.Clients = append(resp.Clients, ClientInfo{
			Nick:   u.Nick,
			User:   u.User,
			Host:   u.Host,
			Server: u.Server,
			Local:  u.Local,
			Oper:   u.Modes['o'],
		})
	}
	return resp, nil
}

// ListPeers lists every linked server (named ListPeers, not Peers, since
// Server already has a Peers field holding the *peer.Manager).
func (s *Server) ListPeers(ctx context.Context, req *PeersRequest) (*PeersResponse, error) {
	resp := &PeersResponse{}
	for _, p := range s.Store.AllServers() {
		resp.Peers = append(resp.Peers, PeerInfo{
			Name:     p.Name,
			Hops:     p.Hops,
			Via:      p.Via,
			LinkedAt: p.LinkedAt.Format(time.RFC3339),
		})
	}
	return resp, nil
}

// Ban applies a KLINE/GLINE/DLINE/XLINE, retroactively disconnecting any
// already-connected local user it now matches, grounded on
// internal/handlers/bans.go's apply-then-retro-disconnect order.
func (s *Server) Ban(ctx context.Context, req *BanRequest) (*BanResponse, error) {
	kind, err := kindFromString(req.Kind)
	if err != nil {
		return &BanResponse{Error: err.Error()}, nil
	}

	s.Bans.Add(kind, req.Mask, req.Reason, req.SetBy, time.Duration(req.DurationSecs)*time.Second)

	resp := &BanResponse{Applied: true}
	for _, u := range s.Bans.RetroDisconnect(kind, req.Mask) {
		resp.Disconnected = append(resp.Disconnected, u.Nick)
		s.killUser(u, "Banned: "+req.Reason)
	}

	if ban.Propagates(kind) && s.Broadcast != nil {
		s.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: s.ServerName, Command: "GLINE", Params: []string{req.Mask, req.Reason}},
			Target:   broadcast.Target{Kind: broadcast.TargetAllPeers},
			Priority: broadcast.High,
		})
	}
	return resp, nil
}

// Unban removes a ban by kind and exact mask.
func (s *Server) Unban(ctx context.Context, req *UnbanRequest) (*UnbanResponse, error) {
	kind, err := kindFromString(req.Kind)
	if err != nil {
		return &UnbanResponse{}, nil
	}
	return &UnbanResponse{Removed: s.Bans.Remove(kind, req.Mask)}, nil
}

// Kill forcibly disconnects a nick, mirroring internal/handlers/admin.go's
// handleKill notify-then-remove order.
func (s *Server) Kill(ctx context.Context, req *KillRequest) (*KillResponse, error) {
	u, ok := s.Store.GetUserByNick(req.Nick)
	if !ok {
		return &KillResponse{Error: "no such nick"}, nil
	}
	s.killUser(u, req.Reason)
	return &KillResponse{Killed: true}, nil
}

func (s *Server) killUser(u *store.User, reason string) {
	killMsg := "Killed by admin: " + reason
	if s.Broadcast != nil {
		s.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: s.ServerName, Command: "KILL", Params: []string{u.Nick, killMsg}},
			Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: []string{u.Nick}},
			Priority: broadcast.Critical,
		})
	}
	channels := s.Store.RemoveUser(u.ID)
	if s.Broadcast == nil {
		return
	}
	prefix := wire.JoinPrefix(u.Nick, u.User, u.Host)
	for _, name := range channels {
		s.Broadcast.Enqueue(broadcast.Item{
			Message:  &wire.Message{Prefix: prefix, Command: "QUIT", Params: []string{killMsg}},
			Target:   broadcast.Target{Kind: broadcast.TargetChannel, Channel: name},
			Priority: broadcast.High,
		})
	}
}

// Squit tears down a peer link by server name.
func (s *Server) Squit(ctx context.Context, req *SquitRequest) (*SquitResponse, error) {
	if s.Peers == nil {
		return &SquitResponse{Found: false}, nil
	}
	return &SquitResponse{Found: s.Peers.Squit(req.Server, req.Reason)}, nil
}

// serviceName is the gRPC full method prefix used by both server
// registration and client dialing.
const serviceName = "ircd.adminapi.Admin"

// handler adapts one of Server's typed methods to grpc.MethodDesc's
// generic (interface{}, error) signature, decoding the request with dec
// (which applies the registered jsonCodec) before calling fn.
func handler[Req, Resp any](fn func(*Server, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		s := srv.(*Server)
		if interceptor == nil {
			return fn(s, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: s, FullMethod: serviceName}
		handlerFn := func(ctx context.Context, req any) (any, error) {
			return fn(s, ctx, req.(*Req))
		}
		return interceptor(ctx, req, info, handlerFn)
	}
}

// ServiceDesc is the hand-written gRPC service descriptor standing in for
// a protoc-generated one: one grpc.MethodDesc per RPC, each wired through
// the generic handler adapter above.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Stats", Handler: handler(func(s *Server, ctx context.Context, r *StatsRequest) (*StatsResponse, error) { return s.Stats(ctx, r) })},
		{MethodName: "Channels", Handler: handler(func(s *Server, ctx context.Context, r *ChannelsRequest) (*ChannelsResponse, error) { return s.Channels(ctx, r) })},
		{MethodName: "Clients", Handler: handler(func(s *Server, ctx context.Context, r *ClientsRequest) (*ClientsResponse, error) { return s.Clients(ctx, r) })},
		{MethodName: "Peers", Handler: handler(func(s *Server, ctx context.Context, r *PeersRequest) (*PeersResponse, error) { return s.ListPeers(ctx, r) })},
		{MethodName: "Ban", Handler: handler(func(s *Server, ctx context.Context, r *BanRequest) (*BanResponse, error) { return s.Ban(ctx, r) })},
		{MethodName: "Unban", Handler: handler(func(s *Server, ctx context.Context, r *UnbanRequest) (*UnbanResponse, error) { return s.Unban(ctx, r) })},
		{MethodName: "Kill", Handler: handler(func(s *Server, ctx context.Context, r *KillRequest) (*KillResponse, error) { return s.Kill(ctx, r) })},
		{MethodName: "Squit", Handler: handler(func(s *Server, ctx context.Context, r *SquitRequest) (*SquitResponse, error) { return s.Squit(ctx, r) })},
	},
	Metadata: "ircd/internal/adminapi",
}

// Register attaches Server to gs as the admin service.
func Register(gs *grpc.Server, impl *Server) {
	gs.RegisterService(&ServiceDesc, impl)
}
