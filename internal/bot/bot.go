// Package bot implements the Slack interface: slash commands to inspect the
// installation and to add or cancel override requests.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// source identifies requests added through Slack.
const source = "slack"

// A SlackApp registers slash commands and runs the socketmode connection.
// Implemented by slackbot.SlackApp.
type SlackApp interface {
	AddSlashCommand(string, func(slack.SlashCommand, *socketmode.Client))
	Run(ctx context.Context) error
}

// A Kicker triggers an immediate rule evaluation after a request changed.
type Kicker interface {
	Kick()
}

// A Bot answers slash commands with the latest poller update and injects
// override requests on behalf of Slack users.
type Bot struct {
	SlackApp
	zones     map[string]*zone.Zone
	actuators map[string]*actuator.Actuator
	poller    poller.Poller
	kicker    Kicker
	logger    *slog.Logger
	update    poller.Update
	updated   bool
	lock      sync.RWMutex
}

// New returns a Bot serving the given zones and actuators through app.
func New(app SlackApp, zones []*zone.Zone, actuators []*actuator.Actuator, p poller.Poller, kicker Kicker, logger *slog.Logger) *Bot {
	b := Bot{
		SlackApp:  app,
		zones:     make(map[string]*zone.Zone, len(zones)),
		actuators: make(map[string]*actuator.Actuator, len(actuators)),
		poller:    p,
		kicker:    kicker,
		logger:    logger,
	}
	for _, z := range zones {
		b.zones[z.Name()] = z
	}
	for _, a := range actuators {
		b.actuators[a.Name()] = a
	}

	b.SlackApp.AddSlashCommand("/zones", b.doAndPost(b.onZones))
	b.SlackApp.AddSlashCommand("/requests", b.doAndPost(b.onRequests))
	b.SlackApp.AddSlashCommand("/set", b.doAndPost(b.onSet))
	b.SlackApp.AddSlashCommand("/boost", b.doAndPost(b.onBoost))
	b.SlackApp.AddSlashCommand("/cancel", b.doAndPost(b.onCancel))
	b.SlackApp.AddSlashCommand("/refresh", b.doAndPost(b.onRefresh))

	return &b
}

// Run the bot until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")

	errCh := make(chan error)
	go func() { errCh <- b.SlackApp.Run(ctx) }()

	ch := b.poller.Subscribe()
	defer b.poller.Unsubscribe(ch)

	for {
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("bot: %w", err)
			}
		case <-ctx.Done():
			return nil
		case update := <-ch:
			b.setUpdate(update)
		}
	}
}

func (b *Bot) setUpdate(update poller.Update) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.update = update
	b.updated = true
}

func (b *Bot) getUpdate() (poller.Update, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.update, b.updated
}

func (b *Bot) onZones(_ context.Context, _ ...string) slack.Attachment {
	update, ok := b.getUpdate()
	if !ok {
		return slack.Attachment{Color: "bad", Text: "no update yet. please check back later"}
	}

	text := make([]string, 0, len(update.Zones))
	for name, status := range update.Zones {
		line := fmt.Sprintf("%s: %.1fºC (target: %.1fºC", name, status.Temperature, status.Target)
		if actuatorStatus, found := update.Actuators[name]; found && actuatorStatus.Known {
			line += ", " + onOff(actuatorStatus.On)
		}
		line += ")"
		text = append(text, line)
	}
	slices.Sort(text)

	return slack.Attachment{
		Color: "good",
		Title: "zones:",
		Text:  strings.Join(text, "\n"),
	}
}

func (b *Bot) onRequests(_ context.Context, _ ...string) slack.Attachment {
	update, ok := b.getUpdate()
	if !ok {
		return slack.Attachment{Color: "bad", Text: "no update yet. please check back later"}
	}

	text := make([]string, 0)
	for name, status := range update.Zones {
		for _, r := range status.Requests {
			text = append(text, "zone "+name+": "+describeRequest(r, fmt.Sprintf("%.1fºC", r.Target)))
		}
	}
	for name, status := range update.Actuators {
		for _, r := range status.Requests {
			text = append(text, "actuator "+name+": "+describeRequest(r, onOff(r.Target != actuator.Off)))
		}
	}

	if len(text) == 0 {
		return slack.Attachment{Color: "good", Text: "no active requests"}
	}
	slices.Sort(text)
	return slack.Attachment{
		Color: "good",
		Title: "requests:",
		Text:  strings.Join(text, "\n"),
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func describeRequest(r demand.Request, value string) string {
	line := value + " (" + r.Source
	if r.Boost {
		line += ", boost"
	} else if !r.Until.IsZero() {
		line += ", until " + r.Until.Format(time.RFC3339)
	}
	return line + ")"
}

func (b *Bot) onSet(ctx context.Context, args ...string) slack.Attachment {
	if len(args) < 2 {
		return slack.Attachment{Color: "bad", Text: "missing parameters\nUsage: /set <zone> auto|on|off|<temperature> [<duration>]"}
	}
	name := args[0]

	var until time.Time
	if len(args) > 2 {
		duration, err := time.ParseDuration(args[2])
		if err != nil {
			return slack.Attachment{Color: "bad", Text: "invalid duration: \"" + args[2] + "\""}
		}
		until = time.Now().Add(duration)
	}

	var text string
	switch args[1] {
	case "auto":
		return b.onCancel(ctx, name)
	case "on", "off":
		a, found := b.actuators[name]
		if !found {
			return slack.Attachment{Color: "bad", Text: "invalid actuator name: " + name}
		}
		a.Request(source, args[1] == "on", until, false)
		text = "switching " + name + " " + args[1]
	default:
		z, found := b.zones[name]
		if !found {
			return slack.Attachment{Color: "bad", Text: "invalid zone name: " + name}
		}
		target, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return slack.Attachment{Color: "bad", Text: "invalid target temperature: \"" + args[1] + "\""}
		}
		z.Request(source, target, until, false)
		text = fmt.Sprintf("setting target temperature for %s to %.1fºC", name, target)
	}
	if !until.IsZero() {
		text += " until " + until.Format(time.RFC3339)
	}

	b.kicker.Kick()
	b.poller.Refresh()
	return slack.Attachment{Color: "good", Text: text}
}

func (b *Bot) onBoost(_ context.Context, args ...string) slack.Attachment {
	if len(args) < 2 {
		return slack.Attachment{Color: "bad", Text: "missing parameters\nUsage: /boost <zone> <temperature>"}
	}
	z, found := b.zones[args[0]]
	if !found {
		return slack.Attachment{Color: "bad", Text: "invalid zone name: " + args[0]}
	}
	target, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return slack.Attachment{Color: "bad", Text: "invalid target temperature: \"" + args[1] + "\""}
	}

	z.Request(source, target, time.Time{}, true)
	b.kicker.Kick()
	b.poller.Refresh()
	return slack.Attachment{Color: "good", Text: fmt.Sprintf("boosting %s to %.1fºC", args[0], target)}
}

func (b *Bot) onCancel(_ context.Context, args ...string) slack.Attachment {
	if len(args) != 1 {
		return slack.Attachment{Color: "bad", Text: "missing parameter\nUsage: /cancel <zone>"}
	}
	name := args[0]

	_, knownZone := b.zones[name]
	_, knownActuator := b.actuators[name]
	if !knownZone && !knownActuator {
		return slack.Attachment{Color: "bad", Text: "invalid zone name: " + name}
	}

	var canceled int
	if z, found := b.zones[name]; found {
		canceled += z.Cancel(source)
	}
	if a, found := b.actuators[name]; found {
		canceled += a.Cancel(source)
	}
	if canceled == 0 {
		return slack.Attachment{Color: "good", Text: "no requests to cancel for " + name}
	}

	b.kicker.Kick()
	b.poller.Refresh()
	return slack.Attachment{Color: "good", Text: fmt.Sprintf("canceled %d request(s) for %s", canceled, name)}
}

func (b *Bot) onRefresh(_ context.Context, _ ...string) slack.Attachment {
	b.poller.Refresh()
	return slack.Attachment{Text: "refreshing"}
}

func (b *Bot) doAndPost(f func(context.Context, ...string) slack.Attachment) func(cmd slack.SlashCommand, c *socketmode.Client) {
	return func(cmd slack.SlashCommand, c *socketmode.Client) {
		a := f(context.Background(), tokenizeText(cmd.Text)...)
		if _, _, err := c.PostMessage(cmd.ChannelID, slack.MsgOptionAttachments(a)); err != nil {
			b.logger.Error("failed to post response", "err", err)
		}
	}
}

func tokenizeText(input string) []string {
	cleanInput := input
	for _, quote := range []string{"“", "”", "'"} {
		cleanInput = strings.ReplaceAll(cleanInput, quote, "\"")
	}
	r := regexp.MustCompile(`[^\s"]+|"([^"]*)"`)
	output := r.FindAllString(cleanInput, -1)

	for index, word := range output {
		output[index] = strings.Trim(word, "\"")
	}
	return output
}
