package main

import (
	"io/fs"
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	resources "github.com/pnibot/pnibot"
	"github.com/pnibot/pnibot/pkg/chat"
	"github.com/pnibot/pnibot/pkg/chatserver"
	"github.com/pnibot/pnibot/pkg/db"
	"github.com/pnibot/pnibot/pkg/flags"
	"github.com/pnibot/pnibot/pkg/search"
)

type ServerFlags struct {
	AIFlags    *flags.AIFlags
	APIFlags   *flags.APIFlags
	CacheFlags *flags.CacheFlags
	DBFlags    *flags.PostgresFlags
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		AIFlags:    flags.NewAIFlags(),
		APIFlags:   flags.NewAPIFlags(),
		CacheFlags: flags.NewCacheFlags(),
		DBFlags:    flags.NewPostgresDatabaseFlags(),
	}
}

func (f *ServerFlags) BindFlags(flagSet *pflag.FlagSet) {
	f.AIFlags.BindFlags(flagSet)
	f.APIFlags.BindFlags(flagSet)
	f.CacheFlags.BindFlags(flagSet)
	f.DBFlags.BindFlags(flagSet)
}

func NewServeCommand() *cobra.Command {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pnibot chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := f.DBFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			cacheClient, err := f.CacheFlags.GetCacheClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get cache client")
			}

			webRoot, err := fs.Sub(resources.Static, "static")
			if err != nil {
				log.WithError(err).Fatal("could not load frontend")
			}

			store := db.NewChatStore(dbc)
			planner := chat.NewPlanner(f.AIFlags.GetClassifyClient())
			links := chat.NewLinkFetcher(cacheClient)
			web := chat.NewWebGatherer(search.NewDuckDuckGo(), cacheClient)
			streamer := chat.NewStreamer(f.AIFlags.GetGenerateClient(), store)
			pipeline := chat.NewPipeline(store, planner, links, web, streamer)

			server := chatserver.NewServer(f.APIFlags.ListenAddr, pipeline, store, webRoot)

			if f.APIFlags.MetricsListenAddr != "" {
				// Serve our metrics endpoint for prometheus to scrape
				go func() {
					http.Handle("/metrics", promhttp.Handler())
					err := http.ListenAndServe(f.APIFlags.MetricsListenAddr, nil) //nolint
					if err != nil {
						panic(err)
					}
				}()
			}

			server.Serve()
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}
