package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tradeapi-connector/src/client"
	"tradeapi-connector/src/config"
	"tradeapi-connector/src/convert"
	"tradeapi-connector/src/credentials"
	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/tradeapi"
)

// probe authenticates against the trade API, prints the session details and
// resolves the datanames given as arguments.
func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	storeSecret := flag.Bool("store-secret", false, "save the secret from the environment to credentials.secret_path")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	// 2. Load config
	conf := config.Default()
	if *configPath != "" {
		var err error
		if conf, err = config.NewConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	appLogger := logger.NewLogger(conf.MConfig, "probe")
	defer appLogger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// 3. Credentials
	env, err := credentials.NewEnvProvider(conf.Credentials.EnvFile, conf.Credentials.EnvVar)
	if err != nil {
		appLogger.Critical("Failed to load environment: %v", err)
	}
	var creds interfaces.ICredentialProvider = env
	if conf.Credentials.SecretPath != "" {
		store := credentials.NewFileStore(conf.Credentials.SecretPath)
		if *storeSecret {
			secret, err := env.Secret(ctx)
			if err != nil {
				appLogger.Critical("No secret to store: %v", err)
			}
			if err := store.Save(secret); err != nil {
				appLogger.Critical("Failed to store secret: %v", err)
			}
			appLogger.Info("Secret saved to %s", store.Path)
		}
		creds = credentials.Chain{store, env}
	}

	// 4. Connect
	conn, err := client.New(ctx, conf, client.Options{Credentials: creds, Logger: appLogger.Named("client")})
	if err != nil {
		appLogger.Critical("Failed to connect: %v", err)
	}
	defer conn.Close()

	details, err := conn.TokenDetails(ctx)
	if err != nil {
		appLogger.Warning("Token details unavailable: %v", err)
	} else {
		fmt.Printf("token created %s, expires %s, read-only %v\n",
			details.CreatedAt.Format(time.RFC3339), details.ExpiresAt.Format(time.RFC3339), details.ReadOnly)
	}
	fmt.Printf("accounts: %s\n", strings.Join(conn.AccountIDs(), ", "))
	fmt.Printf("exchanges: %d, assets: %d\n", len(conn.Exchanges()), len(conn.Assets()))

	// 5. Resolve datanames
	for _, dataname := range flag.Args() {
		symbol, ok := conn.Symbol(ctx, dataname)
		if !ok {
			fmt.Printf("%s: not found\n", dataname)
			continue
		}
		ticker, mic, _ := convert.ParseSymbol(symbol)
		info := conn.SymbolInfo(ctx, ticker, mic)
		fmt.Printf("%s: %s board=%s name=%q decimals=%d\n", dataname, symbol,
			tradeapi.String(info, "board"), tradeapi.String(info, "name"), tradeapi.Int(info, "decimals"))
	}
}
