package main

import (
	"os"

	"github.com/btcsuite/btclog"
	"github.com/shaojunda/ckb-tx-sdk/builder"
	"github.com/shaojunda/ckb-tx-sdk/client"
	"github.com/shaojunda/ckb-tx-sdk/collector"
	"github.com/shaojunda/ckb-tx-sdk/signer"
)

// Loggers per subsystem. All of them write through backendLog.
var (
	backendLog = btclog.NewBackend(os.Stdout)

	log     = backendLog.Logger("CKBT")
	collLog = backendLog.Logger("COLL")
	bldrLog = backendLog.Logger("BLDR")
	signLog = backendLog.Logger("SIGN")
	clntLog = backendLog.Logger("CLNT")
)

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]btclog.Logger{
	"CKBT": log,
	"COLL": collLog,
	"BLDR": bldrLog,
	"SIGN": signLog,
	"CLNT": clntLog,
}

func init() {
	collector.UseLogger(collLog)
	builder.UseLogger(bldrLog)
	signer.UseLogger(signLog)
	client.UseLogger(clntLog)
}

// setLogLevels sets every subsystem to logLevel, falling back to info when
// the level is not recognised.
func setLogLevels(logLevel string) {
	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		level = btclog.LevelInfo
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(level)
	}
}
