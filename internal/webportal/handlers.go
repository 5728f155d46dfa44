package webportal

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/presbrey/ircd/internal/store"
)

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func (p *Portal) dashboardData() map[string]any {
	uptime := "0s"
	if p.Metrics != nil {
		uptime = p.Metrics.Uptime().String()
	}
	return map[string]any{
		"ServerName": p.ServerName,
		"Network":    p.Network,
		"Uptime":     uptime,
		"Clients":    len(p.Store.AllUsers()),
		"Channels":   len(p.Store.AllChannels()),
		"Peers":      len(p.Store.AllServers()),
	}
}

// handleDashboard renders the stats overview page, grounded on
// handleDashboard in irc/server/webportal.go.
func (p *Portal) handleDashboard(c echo.Context) error {
	return c.Render(http.StatusOK, "dashboard.html", p.dashboardData())
}

type channelRow struct {
	Name    string
	Topic   string
	Members int
	Modes   string
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

func (p *Portal) channelRows() []channelRow {
	var rows []channelRow
	for _, ch := range p.Store.AllChannels() {
		rows = append(rows, channelRow{Name: ch.Name, Topic: ch.Topic, Members: len(ch.Members), Modes: channelModeString(ch)})
	}
	return rows
}

// handleChannels renders the channel list page, grounded on
// handleChannels in irc/server/webportal.go.
func (p *Portal) handleChannels(c echo.Context) error {
	return c.Render(http.StatusOK, "channels.html", map[string]any{
		"Network":  p.Network,
		"Channels": p.channelRows(),
	})
}

type clientRow struct {
	Nick   string
	User   string
	Host   string
	Server string
	Local  bool
	Oper   bool
}

func (p *Portal) clientRows() []clientRow {
	var rows []clientRow
	for _, u := range p.Store.AllUsers() {
		rows = append(rows, clientRow{Nick: u.Nick, User: u.User, Host: u.Host, Server: u.Server, Local: u.Local, Oper: u.Modes['o']})
	}
	return rows
}

// handleUsers renders the connected-clients page, grounded on
// handleUsers in irc/server/webportal.go.
func (p *Portal) handleUsers(c echo.Context) error {
	return c.Render(http.StatusOK, "users.html", map[string]any{
		"Network": p.Network,
		"Clients": p.clientRows(),
	})
}

func banKindLetter(k store.BanKind) string {
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

type banRow struct {
	Kind   string
	Mask   string
	Reason string
	SetBy  string
}

func (p *Portal) banRows() []banRow {
	var rows []banRow
	for _, b := range p.Store.AllBans() {
		rows = append(rows, banRow{Kind: banKindLetter(b.Kind), Mask: b.Mask, Reason: b.Reason, SetBy: b.SetBy})
	}
	return rows
}

// handleBans renders the ban-list page, a supplemented page the teacher
// has no direct equivalent of — admind/web.go exposes bans only through
// its KLINE-family IRC commands, not a dashboard page.
func (p *Portal) handleBans(c echo.Context) error {
	return c.Render(http.StatusOK, "bans.html", map[string]any{
		"Network": p.Network,
		"Bans":    p.banRows(),
	})
}

// handleAPIStats is the JSON counterpart of handleDashboard, grounded on
// handleAPIStats in irc/server/webportal.go.
func (p *Portal) handleAPIStats(c echo.Context) error {
	return c.JSON(http.StatusOK, p.dashboardData())
}

// handleAPIChannels is the JSON counterpart of handleChannels, grounded
// on handleAPIChannels in irc/server/webportal.go.
func (p *Portal) handleAPIChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"channels": p.channelRows()})
}

// handleAPIUsers is the JSON counterpart of handleUsers, grounded on
// handleAPIUsers in irc/server/webportal.go.
func (p *Portal) handleAPIUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"users": p.clientRows()})
}

// handleAPIBans is the JSON counterpart of handleBans.
func (p *Portal) handleAPIBans(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"bans": p.banRows()})
}

type killRequest struct {
	Nick   string `json:"nick"`
	Reason string `json:"reason"`
}

// handleAPIKill disconnects a nick, grounded on handleAPIKill in
// irc/server/webportal.go.
func (p *Portal) handleAPIKill(c echo.Context) error {
	var req killRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	u, ok := p.Store.GetUserByNick(req.Nick)
	if !ok {
		return echo.ErrNotFound
	}
	p.Store.RemoveUser(u.ID)
	return c.JSON(http.StatusOK, map[string]bool{"killed": true})
}

type klineRequest struct {
	Mask         string `json:"mask"`
	Reason       string `json:"reason"`
	SetBy        string `json:"set_by"`
	DurationSecs int64  `json:"duration_secs"`
}

// handleAPIKline applies a K-line, grounded on the KLINE/DLINE handlers'
// apply semantics in internal/handlers/bans.go, exposed here for the
// dashboard rather than requiring an IRC client.
func (p *Portal) handleAPIKline(c echo.Context) error {
	var req klineRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}
	p.Bans.Add(store.BanLocalKill, req.Mask, req.Reason, req.SetBy, secondsToDuration(req.DurationSecs))
	hits := p.Bans.RetroDisconnect(store.BanLocalKill, req.Mask)
	nicks := make([]string, 0, len(hits))
	for _, u := range hits {
		nicks = append(nicks, u.Nick)
		p.Store.RemoveUser(u.ID)
	}
	return c.JSON(http.StatusOK, map[string]any{"applied": true, "disconnected": nicks})
}
