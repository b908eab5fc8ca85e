package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/smart-todo/internal/client"
	"github.com/BuzzLyutic/smart-todo/internal/config"
	"github.com/BuzzLyutic/smart-todo/internal/model"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v      *viper.Viper
	client *client.Client
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "todo",
		Short: "Smart todo list client",
		Long: `todo manages your smart-todo list from the terminal: add and complete
todos, reorder them, and let the AI assistant break them down or prioritize them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is ./smart-todo.yaml or $HOME/.config/smart-todo/smart-todo.yaml)")
	flags.String("server", "", "API server URL")
	flags.StringP("user", "u", "", "user id sent in the X-User-ID header")
	flags.Bool("anonymous", false, "act as an anonymous user")
	flags.Bool("verbose", false, "log requests and reorder state to stderr")

	root.AddCommand(
		a.listCmd(),
		a.addCmd(),
		a.doneCmd(),
		a.rmCmd(),
		a.moveCmd(),
		a.prioritizeCmd(),
		a.suggestCmd(),
		a.pepTalkCmd(),
		a.importImageCmd(),
		a.usageCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")

	v, err := config.New(path)
	if err != nil {
		return err
	}
	_ = v.BindPFlag("client.server", flags.Lookup("server"))
	_ = v.BindPFlag("client.user", flags.Lookup("user"))
	_ = v.BindPFlag("client.anonymous", flags.Lookup("anonymous"))
	a.v = v

	if verbose, _ := flags.GetBool("verbose"); verbose {
		if logger, err := zap.NewDevelopment(); err == nil {
			a.logger = logger
		}
	}

	user, err := a.identity()
	if err != nil {
		return err
	}
	a.client = client.New(v.GetString("client.server"), user)
	a.logger.Debug("client ready",
		zap.String("server", v.GetString("client.server")),
		zap.String("user_id", user.ID),
		zap.Bool("anonymous", user.Anonymous),
	)
	return nil
}

// identity returns the configured user. Without one a fresh anonymous id is
// generated and saved so later invocations keep the same list.
func (a *app) identity() (model.User, error) {
	if id := a.v.GetString("client.user"); id != "" {
		return model.User{ID: id, Anonymous: a.v.GetBool("client.anonymous")}, nil
	}

	user := model.User{ID: uuid.NewString(), Anonymous: true}
	a.v.Set("client.user", user.ID)
	a.v.Set("client.anonymous", true)

	path := a.v.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return user, fmt.Errorf("locate home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "smart-todo", "smart-todo.yaml")
	}
	if err := saveIdentity(path, user); err != nil {
		return user, fmt.Errorf("save anonymous identity: %w", err)
	}
	a.logger.Debug("generated anonymous identity", zap.String("path", path))
	return user, nil
}

// saveIdentity merges the client identity into the file at path. Only the
// file's own keys are written back: defaults, env overrides and flags of the
// current run never reach disk.
func saveIdentity(path string, user model.User) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigPermissions(0o600)

	if _, err := os.Stat(path); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	file.Set("client.user", user.ID)
	file.Set("client.anonymous", user.Anonymous)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := file.WriteConfigAs(path); err != nil {
		return err
	}
	// Права при создании не меняют уже существующий файл
	return os.Chmod(path, 0o600)
}
