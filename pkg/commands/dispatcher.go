// Package commands maps inbound chat text to bot replies.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/wapair/internal/observability"
	"github.com/rs/zerolog"
)

const (
	PongText = "Pong!"
	HelpText = "/ping\n/help\n/say [message]"

	sayPrefix = "/say "
)

// Message is an inbound chat message as seen by the dispatcher.
type Message struct {
	Chat   string
	Sender string
	Text   string
	FromMe bool
}

// ReplyFunc sends text back to the chat a message came from.
type ReplyFunc func(ctx context.Context, text string) error

// Rule matches message text and produces a reply.
type Rule struct {
	Name string
	// Match receives the original text and its lower-cased form.
	Match func(text, lower string) bool
	Reply func(text string) string
}

// Exact returns a rule replying with reply when the text equals command,
// ignoring case.
func Exact(name, command, reply string) Rule {
	command = strings.ToLower(command)
	return Rule{
		Name:  name,
		Match: func(_, lower string) bool { return lower == command },
		Reply: func(string) string { return reply },
	}
}

// Prefix returns a rule replying with the original text after prefix when
// the text starts with prefix, ignoring case.
func Prefix(name, prefix string) Rule {
	lowerPrefix := strings.ToLower(prefix)
	return Rule{
		Name:  name,
		Match: func(_, lower string) bool { return strings.HasPrefix(lower, lowerPrefix) },
		Reply: func(text string) string {
			if len(text) < len(prefix) {
				return ""
			}
			return text[len(prefix):]
		},
	}
}

// Dispatcher evaluates every rule against each message. Rules are
// independent: all matching rules reply, in registration order.
type Dispatcher struct {
	rules  []Rule
	logger zerolog.Logger
}

// New creates a dispatcher without rules.
func New(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With().Str("component", "commands").Logger(),
	}
}

// NewDefault creates a dispatcher with the /ping, /help and /say rules.
func NewDefault(logger zerolog.Logger) *Dispatcher {
	d := New(logger)
	d.Register(Exact("ping", "/ping", PongText))
	d.Register(Exact("help", "/help", HelpText))
	d.Register(Prefix("say", sayPrefix))
	return d
}

// Register appends a rule.
func (d *Dispatcher) Register(rule Rule) {
	d.rules = append(d.rules, rule)
	d.logger.Debug().Str("command", rule.Name).Msg("Command registered")
}

// Commands returns the registered rule names in evaluation order.
func (d *Dispatcher) Commands() []string {
	names := make([]string, 0, len(d.rules))
	for _, rule := range d.rules {
		names = append(names, rule.Name)
	}
	return names
}

// Dispatch sends one reply per matching rule and returns how many replies
// were sent. Messages without text and messages sent by the bot's own account
// are ignored. Send failures do not stop later rules; they are joined into
// the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, reply ReplyFunc) (int, error) {
	if msg.FromMe || msg.Text == "" {
		return 0, nil
	}

	lower := strings.ToLower(msg.Text)
	sent := 0
	var errs []error

	for _, rule := range d.rules {
		if !rule.Match(msg.Text, lower) {
			continue
		}

		d.logger.Debug().
			Str("command", rule.Name).
			Str("chat", msg.Chat).
			Msg("Command matched")

		if err := reply(ctx, rule.Reply(msg.Text)); err != nil {
			observability.RecordCommandReply(rule.Name, false)
			errs = append(errs, fmt.Errorf("reply to %s: %w", rule.Name, err))
			continue
		}
		observability.RecordCommandReply(rule.Name, true)
		sent++
	}

	return sent, errors.Join(errs...)
}
