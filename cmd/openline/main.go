package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dukerupert/openline/internal/api"
	"github.com/dukerupert/openline/internal/broadcast"
	"github.com/dukerupert/openline/internal/card"
	"github.com/dukerupert/openline/internal/classify"
	"github.com/dukerupert/openline/internal/display"
	"github.com/dukerupert/openline/internal/events"
	"github.com/dukerupert/openline/internal/live"
	"github.com/dukerupert/openline/internal/logging"
	"github.com/dukerupert/openline/internal/model"
	openlinesync "github.com/dukerupert/openline/internal/sync"
)

const usage = `usage: openline <command> [args]

commands:
  register <user-id> [device-name]   register this device and print its token
  meetings                           list your meetings
  offers                             list your pending offers
  broadcast                          start an availability broadcast
  end                                end your availability broadcast
  status                             show your broadcast status
  claim <offer-id>                   claim a broadcast offer
  accept-offer <offer-id>            accept a scheduled offer
  reject-offer <offer-id>            reject an offer
  cancel <meeting-id>                cancel a meeting you own
  watch                              follow the live change feed
  accept-suggestion <meeting-id>     confirm a suggested meeting
  dismiss-suggestion <meeting-id>    dismiss a suggested meeting

environment:
  OPENLINE_URL     backend base URL (default http://localhost:8080)
  OPENLINE_TOKEN   device token from 'openline register'
  OPENLINE_USER    your user id
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logging.Setup(os.Getenv("OPENLINE_LOG_LEVEL"), os.Getenv("OPENLINE_LOG_FORMAT"))

	baseURL := os.Getenv("OPENLINE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := api.NewClient(baseURL, api.WithToken(os.Getenv("OPENLINE_TOKEN")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]

	if cmd == "register" {
		if err := runRegister(ctx, client, args); err != nil {
			fail(err)
		}
		return
	}

	userID := os.Getenv("OPENLINE_USER")
	if userID == "" {
		fail(errors.New("OPENLINE_USER is not set"))
	}
	bus := events.NewBus()
	engine := openlinesync.NewEngine(client, userID, bus, logger)

	var err error
	switch cmd {
	case "meetings":
		err = runMeetings(ctx, engine)
	case "offers":
		err = runOffers(ctx, engine)
	case "broadcast":
		err = runBroadcast(ctx, client, userID)
	case "end":
		err = runEnd(ctx, engine)
	case "status":
		err = runStatus(ctx, client, userID)
	case "claim":
		err = withArg(args, func(id string) error { return engine.ClaimBroadcast(ctx, id) })
	case "accept-offer":
		err = withArg(args, func(id string) error { return engine.AcceptOffer(ctx, id) })
	case "reject-offer":
		err = withArg(args, func(id string) error { return engine.RejectOffer(ctx, id) })
	case "cancel":
		err = withArg(args, func(id string) error { return engine.CancelMeeting(ctx, id) })
	case "accept-suggestion":
		err = withArg(args, func(id string) error { return engine.AcceptSuggestion(ctx, id) })
	case "dismiss-suggestion":
		err = withArg(args, func(id string) error { return engine.DismissSuggestion(ctx, id) })
	case "watch":
		err = runWatch(client, engine, bus, baseURL, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	engine.Flush()
	if err != nil {
		var claimErr *openlinesync.ClaimRejectedError
		if errors.As(err, &claimErr) {
			fmt.Println("too late: someone else already claimed that broadcast")
			return
		}
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "openline:", err)
	os.Exit(1)
}

func withArg(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one id argument")
	}
	return fn(args[0])
}

func runRegister(ctx context.Context, client *api.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: openline register <user-id> [device-name]")
	}
	deviceName := "cli"
	if len(args) > 1 {
		deviceName = args[1]
	}
	token, err := client.RegisterDevice(ctx, args[0], deviceName)
	if err != nil {
		return err
	}
	fmt.Println("device registered; export this before other commands:")
	fmt.Printf("  export OPENLINE_TOKEN=%s\n", token)
	fmt.Printf("  export OPENLINE_USER=%s\n", args[0])
	return nil
}

func runMeetings(ctx context.Context, engine *openlinesync.Engine) error {
	meetings, err := engine.SyncMeetings(ctx)
	if err != nil {
		return err
	}
	shown := 0
	for _, p := range display.ProcessMeetings(meetings, time.Local) {
		line, ok := meetingLine(p, engine.UserID())
		if !ok {
			continue
		}
		shown++
		fmt.Println(line)
	}
	if shown == 0 {
		fmt.Println("no meetings")
	}
	return nil
}

// meetingLine renders one meeting row, labeled by its card variant. Meetings
// the selector hides (canceled, dismissed drafts, the viewer's finished
// broadcasts) report ok=false.
func meetingLine(p display.ProcessedMeeting, viewerID string) (string, bool) {
	variant := card.SelectMeetingCard(p.Meeting, viewerID)
	if variant == card.VariantNone {
		return "", false
	}
	return fmt.Sprintf("%s  %-16s %s  %s", p.ID, variant, p.DisplayScheduledFor, p.Title), true
}

func runOffers(ctx context.Context, engine *openlinesync.Engine) error {
	offers, err := engine.SyncOffers(ctx)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		fmt.Println("no offers")
		return nil
	}
	for _, p := range display.ProcessOffers(offers, time.Now(), time.Local) {
		fmt.Println(offerLine(p))
	}
	return nil
}

func offerLine(p display.ProcessedOffer) string {
	title := ""
	if p.Meeting != nil {
		title = p.Meeting.Title
	}
	return fmt.Sprintf("%s  %-21s %s  expires in %s  %s",
		p.ID, card.SelectOfferCard(p.Offer), p.DisplayScheduledFor, p.DisplayExpiresAt, title)
}

func runBroadcast(ctx context.Context, client *api.Client, userID string) error {
	m, err := client.BroadcastNow(ctx, api.BroadcastNowRequest{UserID: userID})
	if err != nil {
		return err
	}
	fmt.Printf("broadcasting (meeting %s) until %s\n", m.ID, m.ScheduledEnd.Local().Format(time.Kitchen))
	return nil
}

func runStatus(ctx context.Context, client *api.Client, userID string) error {
	broadcasting, err := client.IsUserBroadcasting(ctx, userID)
	if err != nil {
		return err
	}
	if broadcasting {
		fmt.Println("you are broadcasting")
	} else {
		fmt.Println("you are not broadcasting")
	}
	return nil
}

// runWatch follows the backend's change feed, polling broadcast status as a
// fallback, until interrupted.
func runWatch(client *api.Client, engine *openlinesync.Engine, bus *events.Bus, baseURL string, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, c := range []events.Collection{events.Meetings, events.Offers} {
		collection := c
		bus.Subscribe(collection, func(e events.Event) error {
			fmt.Printf("%s  %s changed (%s)\n", time.Now().Format(time.TimeOnly), collection, e.Reason)
			return nil
		})
	}

	toggle := broadcast.NewToggle(broadcast.Config{}, broadcast.Callbacks{})
	defer toggle.Close()

	status := func(active bool) {
		toggle.SetBroadcasting(active)
		fmt.Printf("%s  broadcasting: %t\n", time.Now().Format(time.TimeOnly), active)
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	listener := live.NewListener(wsURL, os.Getenv("OPENLINE_TOKEN"), engine.UserID(), bus, status, logger)
	listener.Start(ctx)
	defer listener.Stop()

	poller := broadcast.NewPoller(client, engine.UserID(), 0, toggle.SetBroadcasting, logger)
	poller.Start(ctx)
	defer poller.Stop()

	fmt.Println("watching for changes; ctrl-c to stop")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func runEnd(ctx context.Context, engine *openlinesync.Engine) error {
	meetings, err := engine.SyncMeetings(ctx)
	if err != nil {
		return err
	}
	for _, m := range meetings {
		active := m.MeetingState == model.StateSearching || m.MeetingState == model.StateAccepted
		if m.UserFromID == engine.UserID() && classify.IsBroadcastMeeting(m) && active {
			if err := engine.EndBroadcast(ctx, m.ID); err != nil {
				return err
			}
			fmt.Println("broadcast ended")
			return nil
		}
	}
	return errors.New("no active broadcast")
}
