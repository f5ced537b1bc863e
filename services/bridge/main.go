package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/iulianpascalau/psu-bridge/commonGo"
	"github.com/iulianpascalau/psu-bridge/services/bridge/config"
	"github.com/iulianpascalau/psu-bridge/services/bridge/factory"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"
)

const (
	defaultLogsPath      = "logs"
	logFilePrefix        = "psu-bridge"
	logFileLifeSpanInSec = 86400 // 24h
	logFileLifeSpanInMB  = 1024  // 1GB
)

// appVersion should be populated at build time using ldflags
// Usage examples:
// Linux/macOS:
//
//	go build -v -ldflags="-X main.appVersion=$(git describe --all | cut -c7-32)
var appVersion = "undefined"
var fileLogging commonGo.FileLoggingHandler

var (
	helpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`

	log = logger.GetOrCreate("main")

	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated value. For example" +
			", if set to *:INFO the logs for all packages will have the INFO level. However, if set to *:INFO,poller:DEBUG" +
			" the logs for all packages will have the INFO level, excepting the poller package which will receive a DEBUG" +
			" log level.",
		Value: "*:" + logger.LogInfo.String(),
	}
	// logFile is used when the log output needs to be logged in a file
	logSaveFile = cli.BoolFlag{
		Name:  "log-save",
		Usage: "Boolean option for enabling log saving. If set, it will automatically save all the logs into a file.",
	}
	// workingDirectory defines a flag for the path for the working directory.
	workingDirectory = cli.StringFlag{
		Name:  "working-directory",
		Usage: "This flag specifies the `directory` where the bridge will store queues and logs.",
		Value: "",
	}
	// configFile defines the configuration document, TOML or the legacy YAML section list
	configFile = cli.StringFlag{
		Name:  "config",
		Usage: "The `filepath` of the configuration file. Files ending in .yaml or .yml are read in the legacy layout.",
		Value: "./config.toml",
	}
	// envFile defines the file holding the sink and broker credentials
	envFile = cli.StringFlag{
		Name:  "env-file",
		Usage: "The `filepath` of the .env file holding the credentials.",
		Value: "./.env",
	}
	// address overrides the instrument address from the configuration
	address = cli.StringFlag{
		Name: "address",
		Usage: "The instrument `address`: a device path, ASRL<path>::INSTR, TCPIP::<host>::<port>::SOCKET or " +
			"tcp://<host>:<port>. Overrides the configuration value.",
	}
	// prefix overrides the process variable prefix from the configuration
	prefix = cli.StringFlag{
		Name:  "prefix",
		Usage: "The process variable `prefix`. The $hostname macro is resolved. Overrides the configuration value.",
	}
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = helpTemplate
	app.Name = "Bench power supply bridge"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "This is the entry point for starting the service that polls a GPD-4303S power supply and " +
		"publishes its readings to the process variable surface and the metrics sinks"
	app.Flags = []cli.Flag{
		logLevel,
		logSaveFile,
		workingDirectory,
		configFile,
		envFile,
		address,
		prefix,
	}
	app.Authors = []cli.Author{
		{
			Name:  "Iulian Pascalau",
			Email: "iulian.pascalau@gmail.com",
		},
	}

	app.Action = run

	defer func() {
		if fileLogging != nil {
			_ = fileLogging.Close()
		}
	}()

	err := app.Run(os.Args)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	saveLogFile := ctx.GlobalBool(logSaveFile.Name)
	workingDir := ctx.GlobalString(workingDirectory.Name)

	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	fileLogging, err = commonGo.AttachFileLogger(log, defaultLogsPath, logFilePrefix, saveLogFile, workingDir)
	if err != nil {
		return err
	}

	if !check.IfNil(fileLogging) {
		timeLogLifeSpan := time.Second * time.Duration(logFileLifeSpanInSec)
		sizeLogLifeSpanInMB := uint64(logFileLifeSpanInMB)
		err = fileLogging.ChangeFileLifeSpan(timeLogLifeSpan, sizeLogLifeSpanInMB)
		if err != nil {
			return err
		}
	}

	log.Info("Starting power supply bridge", "version", appVersion, "pid", os.Getpid())

	hostname := config.ShortHostname()
	cfg, err := loadConfig(ctx, hostname)
	if err != nil {
		return err
	}

	log.Info("configuration loaded", "instrument", cfg.Instrument.Address, "prefix", cfg.PV.Prefix,
		"http sink", cfg.HTTP.Enabled, "influxdb sink", cfg.InfluxDB.Enabled, "mqtt", cfg.MQTT.Enabled)

	components, err := factory.NewComponentsHandler(*cfg, hostname)
	if err != nil {
		return err
	}

	err = components.Start()
	if err != nil {
		components.Close()
		return err
	}

	log.Info("Power supply bridge started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	log.Info("Application closing, calling Close on all subcomponents...")
	components.Close()

	return nil
}

func loadConfig(ctx *cli.Context, hostname string) (*config.Config, error) {
	cfg, err := config.LoadConfig(ctx.GlobalString(configFile.Name), hostname)
	if err != nil {
		return nil, err
	}

	secrets, err := commonGo.ReadEnvFile(ctx.GlobalString(envFile.Name),
		config.EnvHTTPUsername,
		config.EnvHTTPPassword,
		config.EnvInfluxToken,
		config.EnvMQTTPassword,
	)
	if err != nil {
		return nil, err
	}
	cfg.ApplySecrets(secrets)

	if ctx.GlobalIsSet(address.Name) {
		cfg.Instrument.Address = ctx.GlobalString(address.Name)
	}
	if ctx.GlobalIsSet(prefix.Name) {
		cfg.PV.Prefix = config.ResolvePrefix(ctx.GlobalString(prefix.Name), hostname)
	}

	workingDir := ctx.GlobalString(workingDirectory.Name)
	if len(workingDir) > 0 && !filepath.IsAbs(cfg.Queue.Directory) {
		cfg.Queue.Directory = filepath.Join(workingDir, cfg.Queue.Directory)
	}

	return cfg, cfg.Validate()
}
