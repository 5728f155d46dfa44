package handlers

import (
	"strings"
	"sync"

	"github.com/presbrey/ircd/internal/broadcast"
	"github.com/presbrey/ircd/internal/dispatch"
	"github.com/presbrey/ircd/internal/reply"
	"github.com/presbrey/ircd/internal/store"
	"github.com/presbrey/ircd/internal/wire"
)

// MonitorRegistry implements IRCv3 MONITOR's subscription table: which
// watchers want online/offline notices for which nicks. Kept separate
// from store.Store, mirroring rustircd's modules/src/monitor.rs keeping
// its own subscription map alongside (not inside) the core client table.
type MonitorRegistry struct {
	mu sync.Mutex
	// watchers maps a case-folded nick to the set of watcher UserIDs.
	watchers map[string]map[store.UserID]bool
	// watching maps a watcher to the nicks (case-folded) it's watching, to
	// bound MONITOR L and enforce the per-connection watch limit.
	watching map[store.UserID]map[string]bool
}

// MaxMonitorEntries caps how many nicks a single connection may watch.
const MaxMonitorEntries = 100

func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{
		watchers: make(map[string]map[store.UserID]bool),
		watching: make(map[store.UserID]map[string]bool),
	}
}

func (m *MonitorRegistry) Add(watcher store.UserID, nick string) bool {
	folded := store.FoldNick(nick)
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching[watcher] == nil {
		m.watching[watcher] = make(map[string]bool)
	}
	if len(m.watching[watcher]) >= MaxMonitorEntries {
		return false
	}
	m.watching[watcher][folded] = true

	if m.watchers[folded] == nil {
		m.watchers[folded] = make(map[store.UserID]bool)
	}
	m.watchers[folded][watcher] = true
	return true
}

func (m *MonitorRegistry) Remove(watcher store.UserID, nick string) {
	folded := store.FoldNick(nick)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watching[watcher], folded)
	delete(m.watchers[folded], watcher)
}

func (m *MonitorRegistry) Clear(watcher store.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for folded := range m.watching[watcher] {
		delete(m.watchers[folded], watcher)
	}
	delete(m.watching, watcher)
}

func (m *MonitorRegistry) List(watcher store.UserID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.watching[watcher]))
	for nick := range m.watching[watcher] {
		out = append(out, nick)
	}
	return out
}

// WatchersOf returns every watcher subscribed to nick, used when a user
// connects or disconnects to fan out MONITOR online/offline notices.
func (m *MonitorRegistry) WatchersOf(nick string) []store.UserID {
	folded := store.FoldNick(nick)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.UserID, 0, len(m.watchers[folded]))
	for uid := range m.watchers[folded] {
		out = append(out, uid)
	}
	return out
}

// handleMonitor implements IRCv3 MONITOR +/-/C/L/S.
func (d *Deps) handleMonitor(ctx *dispatch.Context) error {
	if len(ctx.Message.Params) < 1 {
		return needMoreParams(d, ctx, "MONITOR")
	}
	sub := ctx.Message.Params[0]

	switch sub {
	case "+":
		if len(ctx.Message.Params) < 2 {
			return needMoreParams(d, ctx, "MONITOR")
		}
		for _, nick := range splitCSV(ctx.Message.Params[1]) {
			if !d.Monitors.Add(ctx.UserID, nick) {
				break
			}
			d.sendMonitorStatus(ctx, nick)
		}
	case "-":
		if len(ctx.Message.Params) < 2 {
			return needMoreParams(d, ctx, "MONITOR")
		}
		for _, nick := range splitCSV(ctx.Message.Params[1]) {
			d.Monitors.Remove(ctx.UserID, nick)
		}
	case "C":
		d.Monitors.Clear(ctx.UserID)
	case "L":
		list := d.Monitors.List(ctx.UserID)
		ctx.Reply(":" + d.ServerName + " 732 " + nickOrStar(d, ctx) + " :" + strings.Join(list, ","))
		ctx.Reply(":" + d.ServerName + " 733 " + nickOrStar(d, ctx) + " :End of MONITOR list")
	case "S":
		for _, nick := range d.Monitors.List(ctx.UserID) {
			d.sendMonitorStatus(ctx, nick)
		}
	}
	return nil
}

func (d *Deps) sendMonitorStatus(ctx *dispatch.Context, nick string) {
	if u, ok := d.Store.GetUserByNick(nick); ok {
		ctx.Reply(":" + d.ServerName + " 730 " + nickOrStar(d, ctx) + " :" + d.userPrefix(u))
		return
	}
	d.numeric(ctx, reply.ERR_NOSUCHNICK, map[string]string{"nick": nick})
}

// NotifyMonitors announces a nick's online/offline transition to every
// watcher, called by the registration and quit paths.
func (d *Deps) NotifyMonitors(nick, prefix string, online bool) {
	watchers := d.Monitors.WatchersOf(nick)
	if len(watchers) == 0 {
		return
	}

	command := "731"
	payload := nick
	if online {
		command = "730"
		payload = prefix
	}

	var nicks []string
	for _, watcher := range watchers {
		if w, ok := d.Store.GetUser(watcher); ok {
			nicks = append(nicks, w.Nick)
		}
	}
	if len(nicks) == 0 {
		return
	}

	d.Broadcast.SendNow(broadcast.Item{
		Message:  &wire.Message{Prefix: d.ServerName, Command: command, Params: []string{"*", payload}},
		Target:   broadcast.Target{Kind: broadcast.TargetExplicitNicks, Nicks: nicks},
		Priority: broadcast.Normal,
	})
}
