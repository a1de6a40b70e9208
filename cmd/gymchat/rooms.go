package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	signupCmd.Flags().String("display-name", "", "name shown next to your messages (defaults to the username)")
	rootCmd.AddCommand(signupCmd, roomsCmd, createRoomCmd, joinCmd)
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		username, password, err := credentials(cmd)
		if err != nil {
			return err
		}
		displayName, _ := cmd.Flags().GetString("display-name")
		if displayName == "" {
			displayName = username
		}

		id, err := c.SignUp(cmd.Context(), username, password, displayName)
		if err != nil {
			return err
		}
		fmt.Printf("created user %s\n", id)
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms you joined, unread first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		rooms, err := c.Rooms(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tLAST ACTIVITY\t")
		for _, r := range rooms {
			name := r.Name
			if r.Unread {
				name = "* " + name
			}
			last := "-"
			if r.LastMessageAt != nil {
				last = r.LastMessageAt.Local().Format(time.DateTime) + "  " + preview(r.LastMessageBody, 40)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t\n", r.ID, name, last)
		}
		return w.Flush()
	},
}

var createRoomCmd = &cobra.Command{
	Use:   "create-room [name]",
	Short: "Create a venue room (admins only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		id, err := c.CreateRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("created room %s\n", id)
		return nil
	},
}

var joinCmd = &cobra.Command{
	Use:   "join [room-id]",
	Short: "Join a venue room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		return c.JoinRoom(cmd.Context(), args[0])
	},
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
