package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"motors-client/internal/inbox"
	"motors-client/internal/models"
	"motors-client/internal/repositories"
	"motors-client/internal/telemetry"
	"motors-client/internal/ws"
)

func newFollowCmd() *cobra.Command {
	var (
		chatIDs []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print realtime messages as they arrive",
		Long: `Connect with the stored session and print every newMessage pushed by the
server. Use --chat to join specific rooms; without it only messages the
server routes to the user are shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			state, err := a.authState.Load(ctx)
			if errors.Is(err, repositories.ErrNoAuthState) {
				return fmt.Errorf("not signed in: start a session through the gateway first")
			}
			if err != nil {
				return err
			}
			user, err := state.User()
			if err != nil {
				return fmt.Errorf("decode stored user: %w", err)
			}

			conn, err := ws.NewConn(a.socketConfig(), state.Token, user.ID, a.logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			f := &follower{out: cmd.OutOrStdout(), json: asJSON, loc: a.cfg.TimeZone, viewerID: user.ID}
			loggedOut := make(chan string, 1)
			conn.On(models.EventNewMessage, f.onMessage)
			conn.On(models.EventMessageError, func(data json.RawMessage) { f.onError("message error", data) })
			conn.On(models.EventConnectError, func(data json.RawMessage) { f.onError("connection error", data) })
			conn.On(models.EventConnect, func(json.RawMessage) {
				for _, id := range chatIDs {
					if err := conn.Emit(ctx, models.EventJoinRoom, models.RoomPayload{RoomID: id}); err != nil {
						a.logger.Warn("join room failed", "room", id, "error", err)
					}
				}
			})
			conn.On(models.EventStatusUpdate, func(data json.RawMessage) {
				var update models.StatusUpdate
				if json.Unmarshal(data, &update) == nil && update.Action == models.StatusActionLogout {
					select {
					case loggedOut <- update.Message:
					default:
					}
				}
			})

			if err := conn.Connect(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return nil
			case msg := <-loggedOut:
				if err := a.authState.Clear(context.Background()); err != nil {
					a.logger.Error("clear auth state failed", "error", err)
				}
				a.audit.Emit(context.Background(), telemetry.AuditEvent{
					Level:     models.NoticeWarning,
					Component: "follow",
					Text:      "forced logout: " + msg,
					UserID:    user.ID,
				})
				return fmt.Errorf("logged out by server: %s", msg)
			}
		},
	}
	cmd.Flags().StringSliceVar(&chatIDs, "chat", nil, "room id to join (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw events as JSON lines")
	return cmd
}

type follower struct {
	out      io.Writer
	json     bool
	loc      *time.Location
	viewerID string
}

func (f *follower) onMessage(data json.RawMessage) {
	if f.json {
		fmt.Fprintln(f.out, string(data))
		return
	}
	var ev models.NewMessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	sender := ev.Message.Sender.ID
	if sender == f.viewerID {
		sender = models.SenderMe
	}
	at := ev.Message.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(f.out, "[%s] %s %s: %s\n", at.In(f.loc).Format(inbox.TimestampLayout), ev.ChatID, sender, ev.Message.Content)
}

func (f *follower) onError(prefix string, data json.RawMessage) {
	var ev models.ErrorEvent
	_ = json.Unmarshal(data, &ev)
	fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, ev.Message)
}
