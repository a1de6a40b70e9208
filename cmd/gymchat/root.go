package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/putto11262002/gymchat/pkg/client"
	"github.com/putto11262002/gymchat/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "gymchat",
	Short: "Terminal client for gymchat venue rooms",
	Long: `gymchat signs in to a gymchat server, lists and joins venue rooms
and opens a live chat session in a room.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:8080", "server base url")
	rootCmd.PersistentFlags().StringP("username", "u", os.Getenv("GYMCHAT_USERNAME"), "username")
	rootCmd.PersistentFlags().StringP("password", "p", os.Getenv("GYMCHAT_PASSWORD"), "password, prompted when empty")
	rootCmd.PersistentFlags().String("log-level", "error", "client log level")
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	level, _ := cmd.Flags().GetString("log-level")
	return client.New(server, client.WithLogger(logger.New(os.Stderr, level)))
}

// credentials returns the username and password flags, prompting for what is missing.
func credentials(cmd *cobra.Command) (string, string, error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		username = strings.TrimSpace(line)
	}
	if password == "" {
		fmt.Print("Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", "", err
			}
			b = []byte(strings.TrimSpace(line))
		} else {
			fmt.Println()
		}
		password = string(b)
	}
	if username == "" || password == "" {
		return "", "", fmt.Errorf("username and password are required")
	}
	return username, password, nil
}

// signedIn returns a client signed in with the command's credentials.
func signedIn(ctx context.Context, cmd *cobra.Command) (*client.Client, error) {
	c, err := newClient(cmd)
	if err != nil {
		return nil, err
	}
	username, password, err := credentials(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.SignIn(ctx, username, password); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return c, nil
}
