package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/neuron/internal/cli/config"
	"github.com/conduit-lang/neuron/internal/cli/ui"
)

// Walker sources offered by neuron init
const (
	walkerManifest = "manifest"
	walkerCommand  = "command"
)

// defaultManifest is the walker manifest name neuron init proposes
const defaultManifest = "neuron-tree.yml"

// initAnswers collects the neuron init prompts
type initAnswers struct {
	PackageFile  string
	WalkerSource string
	WalkerValue  string
	CacheBackend string
	RedisURL     string
	Port         string
}

func defaultAnswers() initAnswers {
	d := config.Default()
	return initAnswers{
		PackageFile:  d.PackageFile,
		WalkerSource: walkerManifest,
		WalkerValue:  defaultManifest,
		CacheBackend: d.Cache.Backend,
		Port:         strconv.Itoa(d.Server.Port),
	}
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		yes   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a neuron.yml for the project",
		Long: `Create neuron.yml in the project directory.

Prompts for the package file, where the walked dependency tree comes from,
the cache backend and the dev server port. Use --yes to accept the defaults.`,
		Example: `  # Answer the prompts
  neuron init

  # Accept every default
  neuron init --yes

  # Replace an existing neuron.yml
  neuron init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(projectDir, config.FileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			answers := defaultAnswers()
			if !yes {
				if err := askInit(&answers); err != nil {
					return err
				}
			}

			cfg, err := configFromAnswers(answers)
			if err != nil {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), nil, colorsOff()))
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}

			ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("Wrote %s", path), colorsOff())
			color.New(color.FgCyan).Fprintln(cmd.OutOrStdout(), "\nNext: neuron build")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing neuron.yml")

	return cmd
}

// askInit prompts on the terminal, starting from the values in answers
func askInit(answers *initAnswers) error {
	questions := []*survey.Question{
		{
			Name:     "packageFile",
			Prompt:   &survey.Input{Message: "Package file:", Default: answers.PackageFile},
			Validate: survey.Required,
		},
		{
			Name: "walkerSource",
			Prompt: &survey.Select{
				Message: "Dependency tree source:",
				Options: []string{walkerManifest, walkerCommand},
				Default: answers.WalkerSource,
				Help:    "A manifest file already on disk, or a command that prints one",
			},
		},
	}
	if err := survey.Ask(questions, answers); err != nil {
		return err
	}

	walkerPrompt := &survey.Input{Message: "Manifest path:", Default: answers.WalkerValue}
	if answers.WalkerSource == walkerCommand {
		walkerPrompt = &survey.Input{Message: "Walker command:"}
	}
	if err := survey.AskOne(walkerPrompt, &answers.WalkerValue, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	backend := &survey.Select{
		Message: "Build cache:",
		Options: []string{config.CacheMemory, config.CacheRedis, config.CacheNone},
		Default: answers.CacheBackend,
	}
	if err := survey.AskOne(backend, &answers.CacheBackend); err != nil {
		return err
	}
	if answers.CacheBackend == config.CacheRedis {
		prompt := &survey.Input{Message: "Redis URL:", Default: "redis://localhost:6379/0"}
		if err := survey.AskOne(prompt, &answers.RedisURL, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	prompt := &survey.Input{Message: "Dev server port:", Default: answers.Port}
	return survey.AskOne(prompt, &answers.Port, survey.WithValidator(validatePort))
}

// validatePort is a survey validator for the dev server port
func validatePort(ans interface{}) error {
	s, ok := ans.(string)
	if !ok {
		return fmt.Errorf("port must be text")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// configFromAnswers turns prompt answers into a config
func configFromAnswers(a initAnswers) (*config.Config, error) {
	if err := validatePort(a.Port); err != nil {
		return nil, err
	}
	port, _ := strconv.Atoi(a.Port)

	cfg := config.Default()
	cfg.PackageFile = a.PackageFile
	cfg.Server.Port = port
	cfg.Cache.Backend = a.CacheBackend
	cfg.Cache.RedisURL = a.RedisURL

	switch a.WalkerSource {
	case walkerManifest:
		cfg.Walker.Manifest = a.WalkerValue
	case walkerCommand:
		fields := strings.Fields(a.WalkerValue)
		if len(fields) == 0 {
			return nil, fmt.Errorf("walker command is empty")
		}
		cfg.Walker.Command = fields[0]
		cfg.Walker.Args = fields[1:]
	default:
		return nil, fmt.Errorf("unknown walker source %q", a.WalkerSource)
	}

	if cfg.Cache.Backend == config.CacheRedis && cfg.Cache.RedisURL == "" {
		return nil, fmt.Errorf("cache.redis_url is required when cache.backend is redis")
	}
	return cfg, nil
}
