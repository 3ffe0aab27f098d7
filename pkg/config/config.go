package config

import (
	"fmt"
	"time"

	flag "github.com/spf13/pflag"
)

type (
	// RelayConfig is the full configuration of the signaling relay app.
	RelayConfig struct {
		Relay  Relay
		Webrtc Webrtc
	}
	// PartyConfig is the full configuration of the headless client app.
	PartyConfig struct {
		Party  Party
		Webrtc Webrtc
	}
)

type Relay struct {
	Debug bool
	Tag   string
	// Origin restricts the accepted websocket origin, * allows any.
	Origin     string
	Server     Server
	Monitoring Monitoring
	Rooms      Rooms
	Auth       Auth
}

type Party struct {
	Debug              bool
	Name               string
	Room               string
	RelayAddress       string
	Secure             bool
	NegotiationTimeout time.Duration
	Playback           Playback
}

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address string
		Domain  string
		Cert    string
		Key     string
	}
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `fig:"metricEnabled"`
	ProfilingEnabled bool `fig:"profilingEnabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

type Rooms struct {
	// MaxMembers caps the room size, 0 means unlimited.
	MaxMembers int
	// JanitorInterval sets how often stale empty rooms are swept.
	JanitorInterval time.Duration
}

type Auth struct {
	MinPasswordLen int
	TokenTTL       time.Duration
}

type Webrtc struct {
	DisableDefaultInterceptors bool
	IceServers                 []IceServer
	LogLevel                   int
}

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

// Playback tunes the reconciliation policy of a local player
// against remote state updates.
type Playback struct {
	// DriftThreshold is the position disagreement in seconds
	// above which the receiver seeks instead of trusting its clock.
	DriftThreshold float64
	// GuardWindow suppresses locally generated state changes
	// right after a remote state was applied.
	GuardWindow time.Duration
	// EmitInterval is the minimum gap between outgoing state emissions.
	EmitInterval time.Duration
}

// NewRelayConfig reads the relay configuration file with
// its environment overrides.
func NewRelayConfig() (conf RelayConfig) {
	if err := LoadConfig(&conf, ""); err != nil {
		panic(fmt.Errorf("couldn't load the relay config: %w", err))
	}
	return
}

func NewPartyConfig() (conf PartyConfig) {
	if err := LoadConfig(&conf, ""); err != nil {
		panic(fmt.Errorf("couldn't load the party config: %w", err))
	}
	return
}

func (c *RelayConfig) ParseFlags() {
	flag.BoolVarP(&c.Relay.Debug, "debug", "v", c.Relay.Debug, "debug logging")
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "server address")
	flag.IntVar(&c.Relay.Rooms.MaxMembers, "maxMembers", c.Relay.Rooms.MaxMembers, "cap the room size (0 = unlimited)")
	flag.Parse()
}

func (c *PartyConfig) ParseFlags() {
	flag.BoolVarP(&c.Party.Debug, "debug", "v", c.Party.Debug, "debug logging")
	flag.StringVar(&c.Party.RelayAddress, "relay", c.Party.RelayAddress, "relay server address")
	flag.StringVar(&c.Party.Room, "room", c.Party.Room, "room id to join (empty = generate)")
	flag.StringVar(&c.Party.Name, "name", c.Party.Name, "display name for chat attribution")
	flag.Parse()
}
