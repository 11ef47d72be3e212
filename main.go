package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/config"
	dbUtils "tokamak-forge-auction/database"
	"tokamak-forge-auction/database/historydb"
	"tokamak-forge-auction/database/kvdb"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/node"

	"github.com/joho/godotenv"
	"github.com/urfave/cli"
)

const (
	flagCfg   = "cfg"
	flagEnv   = "env"
	flagYes   = "yes"
	flagBlock = "block"
)

var (
	// Version represents the program based on the git tag
	Version = "v0.1.0"
	// Commit represents the program based on the git commit
	Commit = "dev"
	// Date represents the date of application was built
	Date = ""
)

func cmdVersion(c *cli.Context) error {
	fmt.Printf("Version = \"%v\"\n", Version)
	fmt.Printf("Build = \"%v\"\n", Commit)
	fmt.Printf("Date = \"%v\"\n", Date)
	return nil
}

func parseCli(c *cli.Context) (*config.Node, error) {
	cfg, err := getConfig(c)
	if err != nil {
		if err := cli.ShowAppHelp(c); err != nil {
			panic(err)
		}
		return nil, common.Wrap(err)
	}
	return cfg, nil
}

func getConfig(c *cli.Context) (*config.Node, error) {
	if envPath := c.GlobalString(flagEnv); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, common.Wrap(fmt.Errorf("godotenv.Load: %w", err))
		}
	} else if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, common.Wrap(fmt.Errorf("godotenv.Load: %w", err))
	}
	cfg, err := config.LoadNode(c.GlobalString(flagCfg))
	if err != nil {
		return nil, common.Wrap(err)
	}
	return cfg, nil
}

func waitSigInt() {
	stopCh := make(chan interface{})

	// catch ^C to send the stop signal
	ossig := make(chan os.Signal, 1)
	signal.Notify(ossig, os.Interrupt)
	const forceStopCount = 3
	go func() {
		n := 0
		for sig := range ossig {
			if sig == os.Interrupt {
				log.Info("Received Interrupt Signal")
				stopCh <- nil
				n++
				if n == forceStopCount {
					log.Fatalf("Received %v Interrupt Signals", forceStopCount)
				}
			}
		}
	}()
	<-stopCh
}

func cmdRun(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return common.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out)
	innerNode, err := node.NewNode(cfg, c.App.Version)
	if err != nil {
		return common.Wrap(fmt.Errorf("error starting node: %w", err))
	}
	innerNode.Start()
	waitSigInt()
	innerNode.Stop()

	return nil
}

func confirm(c *cli.Context, question string) bool {
	if c.Bool(flagYes) {
		return true
	}
	fmt.Printf("%s [y/N]: ", question)
	var input string
	if _, err := fmt.Scanln(&input); err != nil {
		return false
	}
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func cmdWipeDBs(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return common.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out)
	if !confirm(c, "*WARNING* Are you sure you want to delete the SQL DB "+
		"and the chain state?") {
		return nil
	}
	dbWrite, dbRead, err := node.NewSQLDBs(cfg)
	if err != nil {
		return common.Wrap(err)
	}
	defer func() {
		if err := dbWrite.Close(); err != nil {
			log.Errorw("dbWrite.Close", "err", err)
		}
		if dbRead != dbWrite {
			if err := dbRead.Close(); err != nil {
				log.Errorw("dbRead.Close", "err", err)
			}
		}
	}()
	log.Info("Wiping SQL DB...")
	if err := dbUtils.MigrationsDown(dbWrite.DB, 0); err != nil {
		return common.Wrap(fmt.Errorf("dbUtils.MigrationsDown: %w", err))
	}
	if err := dbUtils.MigrationsUp(dbWrite.DB); err != nil {
		return common.Wrap(fmt.Errorf("dbUtils.MigrationsUp: %w", err))
	}
	if !cfg.StateDB.InMemory {
		log.Infow("Wiping chain state...", "path", cfg.StateDB.Path)
		if err := os.RemoveAll(cfg.StateDB.Path); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

func cmdRollback(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return common.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out)
	blockNum := c.Int64(flagBlock)
	if blockNum < 0 {
		return common.Wrap(fmt.Errorf("invalid block %d", blockNum))
	}
	if !confirm(c, fmt.Sprintf("*WARNING* Are you sure you want to discard "+
		"every block after %d?", blockNum)) {
		return nil
	}

	k, err := kvdb.NewKVDB(kvdb.Config{
		Path:     cfg.StateDB.Path,
		Keep:     cfg.StateDB.Keep,
		InMemory: cfg.StateDB.InMemory,
	})
	if err != nil {
		return common.Wrap(err)
	}
	defer k.Close()
	if err := k.Reset(blockNum); err != nil {
		return common.Wrap(fmt.Errorf("kvdb.Reset: %w", err))
	}

	dbWrite, dbRead, err := node.NewSQLDBs(cfg)
	if err != nil {
		return common.Wrap(err)
	}
	defer func() {
		if err := dbWrite.Close(); err != nil {
			log.Errorw("dbWrite.Close", "err", err)
		}
		if dbRead != dbWrite {
			if err := dbRead.Close(); err != nil {
				log.Errorw("dbRead.Close", "err", err)
			}
		}
	}()
	historyDB := historydb.NewHistoryDB(dbRead, dbWrite, nil)
	if err := historyDB.Reorg(blockNum); err != nil {
		return common.Wrap(fmt.Errorf("historyDB.Reorg: %w", err))
	}
	log.Infow("Rollback done", "lastBlock", blockNum)
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "forge-auction-node"
	app.Version = Version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  flagCfg,
			Usage: "Node configuration `FILE`",
		},
		cli.StringFlag{
			Name:  flagEnv,
			Usage: "Environment `FILE` loaded before the configuration",
		},
	}
	yesFlag := cli.BoolFlag{
		Name:  flagYes,
		Usage: "automatic yes to the prompt",
	}

	app.Commands = []cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Show the application version and build",
			Action:  cmdVersion,
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the chain, the synchronizer and the API",
			Action:  cmdRun,
		},
		{
			Name:    "wipedbs",
			Aliases: []string{},
			Usage:   "Wipe the SQL DB (HistoryDB) and the chain state",
			Action:  cmdWipeDBs,
			Flags:   []cli.Flag{yesFlag},
		},
		{
			Name:    "rollback",
			Aliases: []string{},
			Usage:   "Roll back the chain state and the HistoryDB to a checkpoint block",
			Action:  cmdRollback,
			Flags: []cli.Flag{
				yesFlag,
				cli.Int64Flag{
					Name:     flagBlock,
					Usage:    "last valid block `NUM`",
					Required: true,
				},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", common.Wrap(err))
		os.Exit(1)
	}
}
