package adminapi

// StatsRequest is the empty request for the Stats method.
type StatsRequest struct{}

// StatsResponse mirrors the teacher's handleAPIStats response shape
// (irc/server/webportal.go), extended with the peer count spec.md §4.8
// adds to the core.
type StatsResponse struct {
	ServerName string  `json:"server_name"`
	Network    string  `json:"network"`
	UptimeSecs float64 `json:"uptime_secs"`
	Clients    int     `json:"clients"`
	Channels   int     `json:"channels"`
	Peers      int     `json:"peers"`
}

// ChannelsRequest is the empty request for the Channels method.
type ChannelsRequest struct{}

// ChannelInfo is one row of the Channels response, grounded on
// handleAPIChannels' per-channel map (irc/server/webportal.go).
type ChannelInfo struct {
	Name    string `json:"name"`
	Topic   string `json:"topic"`
	Members int    `json:"members"`
	Modes   string `json:"modes"`
}

// ChannelsResponse lists every channel currently known to the store.
type ChannelsResponse struct {
	Channels []ChannelInfo `json:"channels"`
}

// ClientsRequest is the empty request for the Clients method.
type ClientsRequest struct{}

// ClientInfo is one row of the Clients response.
type ClientInfo struct {
	Nick   string `json:"nick"`
	User   string `json:"user"`
	Host   string `json:"host"`
	Server string `json:"server"`
	Local  bool   `json:"local"`
	Oper   bool   `json:"oper"`
}

// ClientsResponse lists every user currently known to the store, local
// and remote.
type ClientsResponse struct {
	Clients []ClientInfo `json:"clients"`
}

// PeersRequest is the empty request for the Peers method.
type PeersRequest struct{}

// PeerInfo is one row of the Peers response.
type PeerInfo struct {
	Name     string `json:"name"`
	Hops     int    `json:"hops"`
	Via      string `json:"via"`
	LinkedAt string `json:"linked_at"`
}

// PeersResponse lists every linked server, per internal/store.PeerServer.
type PeersResponse struct {
	Peers []PeerInfo `json:"peers"`
}

// BanRequest adds a ban, reusing the same shape for all of the
// Kline/Gline/Dline/Xline families (the Kind field picks the plane).
// Removal goes through UnbanRequest.
type BanRequest struct {
	Kind         string `json:"kind"` // "G", "K", "D", or "X"
	Mask         string `json:"mask"`
	Reason       string `json:"reason"`
	SetBy        string `json:"set_by"`
	DurationSecs int64  `json:"duration_secs"` // 0 means permanent
}

// BanResponse reports the outcome of a BanRequest.
type BanResponse struct {
	Applied       bool     `json:"applied"`
	Error         string   `json:"error,omitempty"`
	Disconnected  []string `json:"disconnected,omitempty"`
}

// UnbanRequest removes a ban by kind and mask.
type UnbanRequest struct {
	Kind string `json:"kind"`
	Mask string `json:"mask"`
}

// UnbanResponse reports whether the mask was found and removed.
type UnbanResponse struct {
	Removed bool `json:"removed"`
}

// KillRequest forcibly disconnects a local or remote nick.
type KillRequest struct {
	Nick   string `json:"nick"`
	Reason string `json:"reason"`
}

// KillResponse reports the outcome of a KillRequest.
type KillResponse struct {
	Killed bool   `json:"killed"`
	Error  string `json:"error,omitempty"`
}

// SquitRequest tears down a peer link by server name.
type SquitRequest struct {
	Server string `json:"server"`
	Reason string `json:"reason"`
}

// SquitResponse reports the outcome of a SquitRequest.
type SquitResponse struct {
	Found bool `json:"found"`
}
