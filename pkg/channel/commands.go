package channel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"transbot/pkg/bus"
)

// CommandFunc runs one command. args is the text after the command name.
type CommandFunc func(ctx context.Context, msg bus.InboundMessage, args string, sender Sender) error

// Commands is a prefix-based command dispatcher shared by all channels.
type Commands struct {
	prefix string

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewCommands builds a dispatcher. An empty prefix disables dispatching.
func NewCommands(prefix string) *Commands {
	return &Commands{
		prefix:   strings.TrimSpace(prefix),
		commands: make(map[string]CommandFunc),
	}
}

// Prefix returns the configured command prefix.
func (c *Commands) Prefix() string {
	if c == nil {
		return ""
	}

	return c.prefix
}

// Register adds or replaces a command. Names are matched case-insensitively.
func (c *Commands) Register(name string, fn CommandFunc) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New("command name is required")
	}
	if strings.ContainsAny(name, " \t\n") {
		return errors.New("command name must be a single word")
	}
	if fn == nil {
		return errors.New("command func is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[name] = fn

	return nil
}

// Names returns the registered command names in sorted order.
func (c *Commands) Names() []string {
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Dispatch runs the command named by msg's content, if any. It reports
// whether a registered command matched. Unknown commands and text without
// the prefix are ignored.
func (c *Commands) Dispatch(ctx context.Context, msg bus.InboundMessage, sender Sender) (bool, error) {
	if c == nil || c.prefix == "" {
		return false, nil
	}

	name, args, ok := c.parse(msg.Content)
	if !ok {
		return false, nil
	}

	c.mu.RLock()
	fn, found := c.commands[name]
	c.mu.RUnlock()
	if !found {
		return false, nil
	}

	return true, fn(ctx, msg, args, sender)
}

func (c *Commands) parse(content string) (string, string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, c.prefix) {
		return "", "", false
	}

	rest := strings.TrimPrefix(content, c.prefix)
	if rest == "" || strings.TrimSpace(rest[:1]) == "" {
		return "", "", false
	}

	fields := strings.Fields(rest)
	name := strings.ToLower(fields[0])
	args := strings.TrimSpace(strings.TrimPrefix(rest, fields[0]))

	return name, args, true
}
