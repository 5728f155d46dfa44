package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/presbrey/ircd/internal/ban"
	"github.com/presbrey/ircd/internal/config"
	"github.com/presbrey/ircd/internal/connio"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// handleClient owns one accepted client connection end to end: ban check,
// connection-class limits, the read/write/ping loops, per-message
// dispatch, and cleanup on disconnect. Grounded on the teacher's
// handleConnection/Client.Handle/Client.cleanup (irc/server/server.go,
// irc/server/client.go), generalized from its bufio.Reader loop to
// internal/connio's Conn and from its irc.Message dispatch to
// internal/dispatch.Dispatcher.
func (s *Server) handleClient(ctx context.Context, raw net.Conn, lc config.ListenerConfig) {
	class := s.mgr.Get().Class(lc.Class)
	conn := connio.New(raw,
		connio.WithIdleTimeout(class.ConnectionTimeout()),
		connio.WithPingInterval(class.PingFrequency()),
	)
	defer conn.Close()

	host := remoteHost(conn.RemoteAddr)
	if addr, ok := conn.DetectProxyHeader(2 * time.Second); ok {
		host = remoteHost(addr)
	}

	// These two rejections happen before WriteLoop is running, so they
	// write the raw socket directly rather than going through conn.Send's
	// queue, mirroring the teacher's SendRaw-then-Close disconnect path
	// (irc/server/client.go Quit).
	if b, banned := s.Bans.MatchAny(ban.Subject{Host: host, IP: host}); banned {
		s.Metrics.BanHits.WithLabelValues(banKindLabel(b.Kind)).Inc()
		raw.Write([]byte(wire.Frame("ERROR :Closing Link: (you are banned from this server)")))
		return
	}
	if class.MaxClients > 0 && len(s.Store.AllUsers()) >= class.MaxClients {
		raw.Write([]byte(wire.Frame("ERROR :Closing Link: (server full)")))
		return
	}

	s.Metrics.ConnectionsCurrent.Inc()
	defer s.Metrics.ConnectionsCurrent.Dec()

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	uid := store.NewUserID()
	s.Deps.SetHost(uid, host)
	s.addSession(uid, conn)
	defer s.removeSession(uid)
	defer delete(s.Deps.Registrations, uid)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); conn.ReadLoop(loopCtx) }()
	go func() { defer wg.Done(); conn.WriteLoop(loopCtx) }()

	go s.pingClient(loopCtx, conn)

	for msg := range conn.Inbound {
		dctx := &dispatch.Context{
			Ctx:     loopCtx,
			Message: msg,
			UserID:  uid,
			Store:   s.Store,
			Reply:   func(line string) { conn.Send(line) },
		}
		s.Dispatcher.Dispatch(dctx)
		if msg.Command == "QUIT" {
			break
		}
	}

	// The read loop stopped (EOF, idle timeout, explicit QUIT, or
	// shutdown). If the user is still in the store, nothing ever ran
	// handleQuit for them — synthesize one so channels and monitors see
	// the disconnect, mirroring the teacher's cleanup().
	if _, ok := s.Store.GetUser(uid); ok {
		s.Dispatcher.Dispatch(&dispatch.Context{
			Ctx:     loopCtx,
			Message: &wire.Message{Command: "QUIT", Params: []string{"Connection reset by peer"}},
			UserID:  uid,
			Store:   s.Store,
			Reply:   func(string) {},
		})
	}

	conn.Close()
	wg.Wait()
}

func (s *Server) pingClient(ctx context.Context, conn *connio.Conn) {
	ticker := conn.PingTicker()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.Send(fmt.Sprintf("PING :%s", s.Deps.ServerName))
		}
	}
}

func banKindLabel(k store.BanKind) string {
	switch k {
	case store.BanGlobal:
		return "G"
	case store.BanLocalKill:
		return "K"
	case store.BanDNS:
		return "D"
	case store.BanExtended:
		return "X"
	default:
		return "?"
	}
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
