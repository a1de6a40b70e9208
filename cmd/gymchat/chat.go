package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/putto11262002/gymchat/pkg/client"
	"github.com/putto11262002/gymchat/pkg/roomsync"
	"github.com/spf13/cobra"
)

func init() {
	chatCmd.Flags().Int("history", 30, "number of messages shown on each redraw")
	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat [room-id]",
	Short: "Open a live chat session in a room",
	Long: `Open a live chat session in a room. Plain lines are sent as messages.

Commands refer to messages by the number shown before them:
  /reply N    reply to message N
  /edit N     edit your message N
  /delete N   delete message N
  /cancel     discard the reply or edit in progress
  /quit       leave the room`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := signedIn(ctx, cmd)
		if err != nil {
			return err
		}
		history, _ := cmd.Flags().GetInt("history")

		roomID := args[0]
		if err := c.JoinRoom(ctx, roomID); err != nil {
			return fmt.Errorf("join room: %w", err)
		}
		return runChat(ctx, c, roomID, history, os.Stdin, os.Stdout)
	},
}

type chatView struct {
	session *roomsync.Session
	history int
	out     io.Writer

	mu  sync.Mutex
	ids []string
}

func runChat(ctx context.Context, c *client.Client, roomID string, history int, in io.Reader, out io.Writer) error {
	session := roomsync.Open(ctx, roomID, roomsync.Options{
		Query:  c,
		Feed:   c,
		Writes: c,
		Auth:   c,
		Marker: c,
	})
	defer session.Close()
	if err := session.Status(); err != nil {
		return err
	}

	v := &chatView{session: session, history: history, out: out}
	v.render()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Changes():
			v.render()
		case <-session.Done():
			v.render()
			if err := session.Status(); err != nil {
				return err
			}
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := v.handle(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (v *chatView) render() {
	messages := v.session.Messages()
	if len(messages) > v.history {
		messages = messages[len(messages)-v.history:]
	}

	v.mu.Lock()
	v.ids = v.ids[:0]
	for _, m := range messages {
		v.ids = append(v.ids, m.ID)
	}
	v.mu.Unlock()

	fmt.Fprintf(v.out, "\n== %s ==\n", v.session.Room().DisplayName)
	for i, m := range messages {
		if m.IsReply() && m.ReplySnapshot != nil {
			fmt.Fprintf(v.out, "      > %s: %s\n", m.ReplySnapshot.AuthorDisplayName, preview(m.ReplySnapshot.BodyPreview, 60))
		}
		edited := ""
		if !m.EditedAt.IsZero() {
			edited = " (edited)"
		}
		fmt.Fprintf(v.out, "%4d  [%s] %s: %s%s\n", i+1,
			m.CreatedAt.Local().Format(time.TimeOnly), m.Author.DisplayName, m.Body, edited)
	}

	view := v.session.Composer().View()
	switch view.State {
	case roomsync.StateReplying:
		fmt.Fprintf(v.out, "replying to %s\n", view.Reply.AuthorDisplayName)
	case roomsync.StateEditing:
		fmt.Fprintf(v.out, "editing: %s\n", view.Draft)
	}
}

// lookup maps a message number of the last render to its id.
func (v *chatView) lookup(arg string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil || n < 1 || n > len(v.ids) {
		return "", fmt.Errorf("no message %q", arg)
	}
	return v.ids[n-1], nil
}

func (v *chatView) handle(ctx context.Context, line string) (bool, error) {
	composer := v.session.Composer()
	if !strings.HasPrefix(line, "/") {
		if strings.TrimSpace(line) == "" {
			return false, nil
		}
		err := composer.Submit(ctx, line)
		if errors.Is(err, roomsync.ErrRejected) {
			return false, fmt.Errorf("the server refused the message: %w", err)
		}
		return false, err
	}

	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/quit":
		return true, nil
	case "/cancel":
		composer.Cancel()
	case "/reply":
		id, err := v.lookup(arg)
		if err != nil {
			return false, err
		}
		if err := composer.StartReply(id); err != nil {
			return false, err
		}
	case "/edit":
		id, err := v.lookup(arg)
		if err != nil {
			return false, err
		}
		if err := composer.StartEdit(ctx, id); err != nil {
			return false, err
		}
	case "/delete":
		id, err := v.lookup(arg)
		if err != nil {
			return false, err
		}
		return false, composer.Delete(ctx, id)
	default:
		return false, fmt.Errorf("unknown command %s", command)
	}
	v.render()
	return false, nil
}
