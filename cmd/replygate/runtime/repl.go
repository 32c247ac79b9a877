package runtime

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miuzhaii/replygate/internal/gate"
	"github.com/miuzhaii/replygate/internal/message"

	"github.com/google/shlex"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// REPL drives the gate from stdin. Plain lines are injected as inbound
// messages for the current conversation; slash commands switch conversation,
// sender, and gate toggles so bursts and group scenarios can be played
// through by hand.
type REPL struct {
	components *RuntimeComponents
	reader     *bufio.Reader
	commands   map[string]func(args []string) error

	kind       message.Kind
	platformID string
	senderID   string
	senderName string
}

func NewREPL(components *RuntimeComponents) *REPL {
	r := &REPL{
		components: components,
		reader:     bufio.NewReader(os.Stdin),
		kind:       message.KindPrivate,
		platformID: "repl",
		senderID:   "operator",
		senderName: "operator",
	}

	r.commands = map[string]func(args []string) error{
		"/exit":     r.cmdExit,
		"/help":     r.cmdHelp,
		"/group":    r.cmdGroup,
		"/private":  r.cmdPrivate,
		"/sender":   r.cmdSender,
		"/takeover": r.cmdTakeover,
		"/merge":    r.cmdMerge,
		"/status":   r.cmdStatus,
		"/reset":    r.cmdReset,
	}
	return r
}

func (r *REPL) Start() error {
	fmt.Printf("Replygate Interactive Session: %s\n", r.conversationKey())
	fmt.Println("Type '/exit' to quit, '/help' for commands.")

	go r.drainEmissions()

	for {
		select {
		case <-r.components.Ctx.Done():
			return nil
		default:
			if err := r.readLine(); err != nil {
				if err == io.EOF {
					return nil
				}
				continue
			}
		}
	}
}

func (r *REPL) readLine() error {
	fmt.Print("> ")
	text, err := r.reader.ReadString('\n')
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return r.dispatch(text)
	}

	return r.inject(text)
}

func (r *REPL) dispatch(line string) error {
	parts, err := shlex.Split(line)
	if err != nil || len(parts) == 0 {
		fmt.Printf("%sInvalid command: %v%s\n", colorRed, err, colorReset)
		return nil
	}

	handler, exists := r.commands[parts[0]]
	if !exists {
		fmt.Printf("Unknown command %s. Type '/help' for commands.\n", parts[0])
		return nil
	}
	return handler(parts[1:])
}

// inject runs one message through the pipeline and prints the verdict. The
// emission itself arrives asynchronously via the notifier drain.
func (r *REPL) inject(text string) error {
	msg := message.New("cli", r.kind, r.platformID, r.senderID, r.senderName, text)

	signal, err := r.components.Pipeline.HandleInbound(r.components.Ctx, msg)
	if err != nil {
		fmt.Printf("%sError: %v%s\n", colorRed, err, colorReset)
		return nil
	}

	fmt.Printf("%s[gate] %s%s\n", signalColor(signal), signal.String(), colorReset)
	return nil
}

// drainEmissions prints what the agent runtime would have received. The
// carriage return clears a pending prompt before printing, then the prompt
// is redrawn.
func (r *REPL) drainEmissions() {
	for {
		select {
		case <-r.components.Ctx.Done():
			return
		case evt := <-r.components.Notifier.Events():
			fmt.Printf("\r\033[K")
			fmt.Printf("%s[agent:%s] %s%s\n", colorGreen, evt.ConversationKey, evt.Text, colorReset)
			fmt.Print("> ")
		}
	}
}

func (r *REPL) cmdExit(args []string) error {
	return io.EOF
}

func (r *REPL) cmdHelp(args []string) error {
	fmt.Println("Commands:")
	fmt.Println("  /group <id>          switch to a group conversation")
	fmt.Println("  /private <id>        switch to a private conversation")
	fmt.Println("  /sender <id> [name]  change the simulated sender")
	fmt.Println("  /takeover on|off     toggle complete takeover")
	fmt.Println("  /merge on|off        toggle burst merging")
	fmt.Println("  /status              show the current session state")
	fmt.Println("  /reset               delete the current conversation transcript")
	fmt.Println("  /exit                quit")
	return nil
}

func (r *REPL) cmdGroup(args []string) error {
	if len(args) != 1 {
		fmt.Println("usage: /group <id>")
		return nil
	}
	r.kind = message.KindGroup
	r.platformID = args[0]
	fmt.Printf("Switched to %s\n", r.conversationKey())
	return nil
}

func (r *REPL) cmdPrivate(args []string) error {
	if len(args) != 1 {
		fmt.Println("usage: /private <id>")
		return nil
	}
	r.kind = message.KindPrivate
	r.platformID = args[0]
	fmt.Printf("Switched to %s\n", r.conversationKey())
	return nil
}

func (r *REPL) cmdSender(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: /sender <id> [name]")
		return nil
	}
	r.senderID = args[0]
	r.senderName = args[0]
	if len(args) == 2 {
		r.senderName = args[1]
	}
	fmt.Printf("Sender is now %s (%s)\n", r.senderName, r.senderID)
	return nil
}

func (r *REPL) cmdTakeover(args []string) error {
	on, ok := parseToggle(args)
	if !ok {
		fmt.Println("usage: /takeover on|off")
		return nil
	}
	r.components.Gate.SetTakeover(on)
	fmt.Printf("Takeover %s\n", toggleWord(on))
	return nil
}

func (r *REPL) cmdMerge(args []string) error {
	on, ok := parseToggle(args)
	if !ok {
		fmt.Println("usage: /merge on|off")
		return nil
	}
	if on && r.components.Coordinator == nil {
		fmt.Println("Merging is disabled in config (merge.enabled: false), nothing to turn on.")
		return nil
	}
	r.components.Gate.SetMergeEnabled(on)
	fmt.Printf("Merging %s\n", toggleWord(on))
	return nil
}

func (r *REPL) cmdStatus(args []string) error {
	fmt.Printf("Conversation: %s\n", r.conversationKey())
	fmt.Printf("Sender:       %s (%s)\n", r.senderName, r.senderID)
	fmt.Printf("Takeover:     %s\n", toggleWord(r.components.Gate.Takeover()))
	if r.components.Coordinator != nil {
		fmt.Printf("Merging:      %s (%d pending)\n", toggleWord(r.components.Gate.MergeEnabled()), r.components.Coordinator.Pending())
	} else {
		fmt.Printf("Merging:      disabled in config\n")
	}
	return nil
}

func (r *REPL) cmdReset(args []string) error {
	key := r.conversationKey()
	if err := r.components.Store.ResetConversation(key); err != nil {
		fmt.Printf("%sError: %v%s\n", colorRed, err, colorReset)
		return nil
	}
	fmt.Printf("✓ Conversation '%s' reset.\n", key)
	return nil
}

func (r *REPL) conversationKey() string {
	return message.Key(r.kind, r.platformID)
}

func signalColor(s gate.Signal) string {
	switch s {
	case gate.ForceTrigger:
		return colorGreen
	case gate.BlockAll:
		return colorRed
	case gate.BlockTrigger:
		return colorYellow
	default:
		return colorCyan
	}
}

func parseToggle(args []string) (on bool, ok bool) {
	if len(args) != 1 {
		return false, false
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, true
	case "off":
		return false, true
	default:
		return false, false
	}
}

func toggleWord(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
