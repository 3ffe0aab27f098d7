package main

import (
	"context"
	goflag "flag"

	"github.com/roomcast/roomcast/pkg/config"
	"github.com/roomcast/roomcast/pkg/logger"
	"github.com/roomcast/roomcast/pkg/os"
	"github.com/roomcast/roomcast/pkg/relay"
	flag "github.com/spf13/pflag"
)

var Version = "?"

func main() {
	conf := config.NewRelayConfig()
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	conf.ParseFlags()

	log := logger.NewConsole(conf.Relay.Debug, "r", false)

	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}
	r, err := relay.New(conf, log)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't init the relay")
	}
	r.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if err := r.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown errors")
		}
	}()
	<-os.ExpectTermination()
	cancel()
}
