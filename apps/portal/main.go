package main

import (
	"log"
	"os"

	"github.com/unitrack/unitrack/core"
	"github.com/unitrack/unitrack/core/prediction"
	"github.com/unitrack/unitrack/core/session"
	backendapi "github.com/unitrack/unitrack/services/backend"
	logsvc "github.com/unitrack/unitrack/services/logger"
	inmemkv "github.com/unitrack/unitrack/storage/kv/inmem"
	rediskv "github.com/unitrack/unitrack/storage/kv/redis"
)

func main() {
	defer os.Exit(0)

	std := log.New(os.Stdout, "PORTAL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std)
	logger.Enable(!core.Conf.GetBool("debug") && core.Conf.GetString("rollbarToken") != "")

	// session persistence: Redis when configured, in-memory otherwise
	var kv core.KVStore
	if addr := core.Conf.GetString("redisAddr"); addr != "" {
		rstore, err := rediskv.Open()
		if err != nil {
			logger.Fatal("redis unavailable", err)
		}
		defer rstore.Close()
		kv = rstore
	} else {
		kv = inmemkv.NewStore()
	}

	store := session.NewStore(kv, logger)
	api := backendapi.NewClient(logger)

	cli := commandLine{
		log:     logger,
		store:   store,
		api:     api,
		predSvc: prediction.NewService(api, store, logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(err.Error())
		}
		os.Exit(1)
	}
}
