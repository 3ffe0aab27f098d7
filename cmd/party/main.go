package main

import (
	goflag "flag"

	"github.com/roomcast/roomcast/pkg/api"
	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/os"
	"github.com/roomcast/roomcast/pkg/party"
	"github.com/roomcast/roomcast/pkg/playback"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewPartyConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Party.Debug, "p", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	session, err := party.NewSession(conf, playback.NewMemoryPlayer(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't init the session")
	}
	session.OnChat = func(m api.ChatMessageNotice) {
		log.Info().Msgf("[%v] %s: %s", m.Timestamp, m.Username, m.Text)
	}

	done, err := session.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't reach the relay")
	}
	log.Info().Msgf("room: %v", session.Room())

	select {
	case <-done:
		log.Warn().Msg("the relay connection was lost")
	case <-os.ExpectTermination():
	}
	session.Disconnect()
}
