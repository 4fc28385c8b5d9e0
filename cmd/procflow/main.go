package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohitkumar/procflow/analytics"
	"github.com/mohitkumar/procflow/config"
	"github.com/mohitkumar/procflow/definition"
	"github.com/mohitkumar/procflow/logger"
	"github.com/mohitkumar/procflow/model"
	"github.com/mohitkumar/procflow/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}

type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.String("definitions", "definitions", "framework definition file or directory")
	flags.String("agents", "", "yaml file declaring script agents")
	flags.String("storage-impl", "file", "implementation of underline storage: file, memory, redis or sql")
	flags.String("state-dir", "state", "directory used by file storage")
	flags.String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	flags.String("namespace", "procflow", "namespace used in storage")
	flags.String("sql-dsn", "procflow.db", "sqlite database used by sql storage")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.Bool("development", false, "human readable logs")
	flags.Duration("poll-interval", time.Second, "agent poll and blocked activity retry interval")
	flags.Duration("backoff-initial", time.Second, "first retry delay for activities no agent can take")
	flags.Duration("backoff-max", time.Minute, "maximum retry delay for activities no agent can take")
	flags.Int("blocked-alert-attempts", 5, "failed matches before an ERROR event is emitted, 0 disables")
	flags.String("on-complete", "NOOP", "state handler for completed processes: NOOP or DELETE")
	flags.String("on-failure", "NOOP", "state handler for failed processes: NOOP or DELETE")
	flags.Duration("cache-expiration", 10*time.Minute, "how long finished processes stay cached")
	flags.String("analytics-file", "", "append workflow events to this file as json lines")
	flags.String("metrics-file", "", "write prometheus metrics to this file on exit")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			// it's ok if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return err
			}
		}
	}

	c.cfg.DefinitionsPath = viper.GetString("definitions")
	c.cfg.AgentsFile = viper.GetString("agents")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.FileConfig.StateDir = viper.GetString("state-dir")
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.SqlConfig.DSN = viper.GetString("sql-dsn")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.Development = viper.GetBool("development")
	c.cfg.PollInterval = viper.GetDuration("poll-interval")
	c.cfg.EngineConfig.BackoffInitial = viper.GetDuration("backoff-initial")
	c.cfg.EngineConfig.BackoffMax = viper.GetDuration("backoff-max")
	c.cfg.EngineConfig.BlockedAlertAttempts = viper.GetInt("blocked-alert-attempts")
	c.cfg.EngineConfig.OnComplete = viper.GetString("on-complete")
	c.cfg.EngineConfig.OnFailure = viper.GetString("on-failure")
	c.cfg.EngineConfig.CacheExpiration = viper.GetDuration("cache-expiration")
	c.cfg.MetricsFile = viper.GetString("metrics-file")
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig = analytics.DataCollectorConfig{FileName: file, CollectorType: analytics.LOG_FILE_DATA_COLLECTOR}
	}

	if err := logger.Init(c.cfg.LogLevel, c.cfg.Development); err != nil {
		return err
	}
	return c.cfg.Validate()
}

func (c *cli) validate(cmd *cobra.Command, args []string) error {
	registry, err := definition.Load(c.cfg.DefinitionsPath)
	if err != nil {
		return err
	}
	for _, fw := range registry.Frameworks() {
		processes := 0
		activities := 0
		for _, p := range fw.Processes {
			p.Walk(func(sub *model.Process) {
				processes++
				activities += len(sub.Activities)
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d processes, %d activities\n", fw.Id, fw.Name, processes, activities)
	}
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	processId, err := cmd.Flags().GetString("process")
	if err != nil {
		return err
	}
	frameworkId, err := cmd.Flags().GetString("framework")
	if err != nil {
		return err
	}
	pairs, err := cmd.Flags().GetStringArray("input")
	if err != nil {
		return err
	}
	input, err := parseInput(pairs)
	if err != nil {
		return err
	}

	s, err := service.New(c.cfg.Config)
	if err != nil {
		return err
	}
	pi, err := s.RunFlow(cmd.Context(), processId, frameworkId, input)
	if err != nil {
		s.Shutdown()
		return err
	}
	if err := printJson(cmd, pi); err != nil {
		return err
	}
	return s.Shutdown()
}

func (c *cli) inspect(cmd *cobra.Command, args []string) error {
	s, err := service.New(c.cfg.Config)
	if err != nil {
		return err
	}
	defer s.Shutdown()
	tree, err := s.Inspect(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJson(cmd, tree)
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	s, err := service.New(c.cfg.Config)
	if err != nil {
		return err
	}
	if err := s.Start(cmd.Context()); err != nil {
		s.Shutdown()
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return s.Shutdown()
}

// parseInput turns key=value pairs into an initial context. Values that
// parse as JSON keep their type.
func parseInput(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("input %q must be key=value", pair)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		input[key] = v
	}
	return input, nil
}

func printJson(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newCommand() *cobra.Command {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:               "procflow",
		Short:             "process framework workflow engine",
		PersistentPreRunE: cli.setupConfig,
		SilenceUsage:      true,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "load and validate framework definitions",
		RunE:  cli.validate,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "start a process and drive the configured agents until idle",
		RunE:  cli.run,
	}
	runCmd.Flags().String("process", "", "id of the process to start")
	runCmd.Flags().String("framework", "", "framework of the process, searched in all frameworks when empty")
	runCmd.Flags().StringArray("input", nil, "initial context entry as key=value, repeatable")
	runCmd.MarkFlagRequired("process")

	inspectCmd := &cobra.Command{
		Use:   "inspect <instance-id>",
		Short: "print the persisted state of a process instance",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.inspect,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "recover persisted processes and run agents until interrupted",
		RunE:  cli.serve,
	}

	cmd.AddCommand(validateCmd, runCmd, inspectCmd, serveCmd)
	return cmd
}

func main() {
	cmd := newCommand()
	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
