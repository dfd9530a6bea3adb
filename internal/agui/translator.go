package agui

import (
	"fmt"
	"iter"
	"sync"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

const (
	// ErrorCodeAgent is the RUN_ERROR code for failures while consuming a run.
	ErrorCodeAgent = "AGENT_ERROR"

	unknownTool = "unknown_tool"

	// emptyToolOutput stands in for a tool result with no content, which
	// AG-UI rejects.
	emptyToolOutput = "(no output)"
	defaultRunError = "agent error"
)

// MessageInProgress tracks the assistant message being streamed for a run.
type MessageInProgress struct {
	ID           string
	TextOpen     bool
	ToolCallID   string
	ToolCallName string
}

func (m *MessageInProgress) merge(data MessageInProgress) {
	if data.ID != "" {
		m.ID = data.ID
	}
	if data.TextOpen {
		m.TextOpen = true
	}
	if data.ToolCallID != "" {
		m.ToolCallID = data.ToolCallID
	}
	if data.ToolCallName != "" {
		m.ToolCallName = data.ToolCallName
	}
}

// Translator turns upstream agent events into AG-UI events. One translator
// serves many runs; per-run message state is keyed by an id private to each
// Run call, so concurrent runs reusing a client run id stay apart.
type Translator struct {
	mu                 sync.Mutex
	messagesInProgress map[string]*MessageInProgress
}

// NewTranslator creates a translator.
func NewTranslator() *Translator {
	return &Translator{messagesInProgress: make(map[string]*MessageInProgress)}
}

// runState is the bookkeeping of one translated run.
type runState struct {
	key               string
	threadID          string
	runID             string
	started           bool
	terminal          bool
	functionStreaming bool
}

// Run consumes upstream and yields the outbound events. The sequence always
// ends with exactly one RUN_FINISHED or RUN_ERROR unless the consumer stops
// early. Empty ids are replaced with fresh UUIDs.
func (t *Translator) Run(threadID, runID string, upstream iter.Seq2[agent.Event, error]) iter.Seq[aguievents.Event] {
	return func(yield func(aguievents.Event) bool) {
		if threadID == "" {
			threadID = uuid.NewString()
		}
		if runID == "" {
			runID = uuid.NewString()
		}
		st := &runState{key: uuid.NewString(), threadID: threadID, runID: runID}
		defer t.forget(st.key)

		emit := func(e aguievents.Event) bool {
			switch e.Type() {
			case aguievents.EventTypeRunStarted:
				st.started = true
			case aguievents.EventTypeRunFinished, aguievents.EventTypeRunError:
				st.terminal = true
			}
			return yield(e)
		}

		stopped, err := t.consume(st, upstream, emit)
		if stopped {
			return
		}
		if err != nil {
			log.Errorf("Error in AG-UI agent run: %v", err)
			if !st.started {
				if !emit(aguievents.NewRunStartedEvent(threadID, runID)) {
					return
				}
			}
			msg := err.Error()
			if msg == "" {
				msg = defaultRunError
			}
			emit(aguievents.NewRunErrorEvent(msg,
				aguievents.WithErrorCode(ErrorCodeAgent),
				aguievents.WithRunID(runID),
			))
			return
		}
		if !st.terminal {
			log.Infof("AG-UI run completed without terminal event, emitting RUN_FINISHED")
			emit(aguievents.NewRunFinishedEvent(threadID, runID))
		}
	}
}

// consume translates upstream until it ends, fails, reaches a terminal
// event or the consumer stops. A panic inside upstream counts as a failure.
func (t *Translator) consume(st *runState, upstream iter.Seq2[agent.Event, error], emit func(aguievents.Event) bool) (stopped bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			stopped = false
			err = fmt.Errorf("%v", p)
		}
	}()

	for ev, upErr := range upstream {
		if upErr != nil {
			return false, upErr
		}
		for _, out := range t.translate(st, ev) {
			if !emit(out) {
				return true, nil
			}
		}
		if st.terminal {
			return false, nil
		}
	}
	return false, nil
}

func (t *Translator) translate(st *runState, ev agent.Event) []aguievents.Event {
	switch ev.Tag {
	case agent.TagRunStart:
		if st.started {
			return nil
		}
		return []aguievents.Event{aguievents.NewRunStartedEvent(st.threadID, st.runID)}
	case agent.TagRunEnd:
		return []aguievents.Event{aguievents.NewRunFinishedEvent(st.threadID, st.runID)}
	case agent.TagRunError:
		msg := ev.Error
		if msg == "" {
			msg = defaultRunError
		}
		return []aguievents.Event{aguievents.NewRunErrorEvent(msg,
			aguievents.WithErrorCode(ErrorCodeAgent),
			aguievents.WithRunID(st.runID),
		)}
	case agent.TagToolEnd:
		return t.translateToolEnd(st, ev)
	default:
		return t.baseline(st, ev)
	}
}

func (t *Translator) translateToolEnd(st *runState, ev agent.Event) []aguievents.Event {
	fallback := ev.Name
	if fallback == "" {
		fallback = unknownTool
	}

	out := classifyToolOutput(ev.Output)
	switch out.kind {
	case outputCommand:
		var events []aguievents.Event
		for _, msg := range out.messages {
			events = append(events, t.toolCallEvents(st, ev, msg, fallback)...)
		}
		return events
	case outputToolResult:
		return t.toolCallEvents(st, ev, out.messages[0], fallback)
	default:
		return t.baseline(st, ev)
	}
}

// toolCallEvents emits the start/args/end triple unless the model already
// streamed the call, then the result.
func (t *Translator) toolCallEvents(st *runState, ev agent.Event, msg agent.ToolMessage, fallbackName string) []aguievents.Event {
	name := msg.Name
	if name == "" {
		name = fallbackName
	}
	parentID := msg.ID
	if parentID == "" {
		parentID = uuid.NewString()
	}

	args := jsonSafe(ev.Input)
	if args == "" {
		args = "{}"
	}
	content := contentText(msg.Content)
	if content == "" {
		content = emptyToolOutput
	}

	var events []aguievents.Event
	if !st.functionStreaming {
		events = append(events,
			aguievents.NewToolCallStartEvent(msg.ToolCallID, name, aguievents.WithParentMessageID(parentID)),
			aguievents.NewToolCallArgsEvent(msg.ToolCallID, args),
			aguievents.NewToolCallEndEvent(msg.ToolCallID),
		)
	}
	return append(events, aguievents.NewToolCallResultEvent(uuid.NewString(), msg.ToolCallID, content))
}

// baseline handles every event without special tool-end treatment.
func (t *Translator) baseline(st *runState, ev agent.Event) []aguievents.Event {
	switch ev.Tag {
	case agent.TagChatModelStream:
		return t.streamChunk(st, ev.Chunk)
	case agent.TagChatModelEnd:
		return t.endMessage(st)
	case agent.TagChainStart:
		if ev.Name == "" {
			return nil
		}
		return []aguievents.Event{aguievents.NewStepStartedEvent(ev.Name)}
	case agent.TagChainEnd:
		if ev.Name == "" {
			return nil
		}
		return []aguievents.Event{aguievents.NewStepFinishedEvent(ev.Name)}
	case agent.TagInterrupt:
		if ev.Interrupt == nil {
			return nil
		}
		return []aguievents.Event{aguievents.NewCustomEvent(agent.TagInterrupt, aguievents.WithValue(ev.Interrupt))}
	default:
		log.Debugf("skipping %s event for %q", ev.Tag, ev.Name)
		return nil
	}
}

func (t *Translator) streamChunk(st *runState, chunk *agent.MessageChunk) []aguievents.Event {
	if chunk == nil {
		return nil
	}
	var events []aguievents.Event
	cur := t.messageInProgress(st.key)

	messageID := chunk.MessageID
	if messageID == "" {
		if cur.ID != "" {
			messageID = cur.ID
		} else {
			messageID = uuid.NewString()
		}
	}

	if chunk.Content != "" {
		if !cur.TextOpen || cur.ID != messageID {
			if cur.TextOpen {
				events = append(events, aguievents.NewTextMessageEndEvent(cur.ID))
				t.clearMessageInProgress(st.key)
			}
			events = append(events, aguievents.NewTextMessageStartEvent(messageID, aguievents.WithRole("assistant")))
			t.setMessageInProgress(st.key, MessageInProgress{ID: messageID, TextOpen: true})
		}
		events = append(events, aguievents.NewTextMessageContentEvent(messageID, chunk.Content))
	}

	for _, tc := range chunk.ToolCalls {
		cur = t.messageInProgress(st.key)
		if tc.ID != "" && tc.ID != cur.ToolCallID {
			if cur.ToolCallID != "" {
				events = append(events, aguievents.NewToolCallEndEvent(cur.ToolCallID))
			}
			name := tc.Name
			if name == "" {
				name = unknownTool
			}
			events = append(events, aguievents.NewToolCallStartEvent(tc.ID, name, aguievents.WithParentMessageID(messageID)))
			t.setMessageInProgress(st.key, MessageInProgress{ID: messageID, ToolCallID: tc.ID, ToolCallName: name})
			st.functionStreaming = true
			cur = t.messageInProgress(st.key)
		}
		if tc.Args != "" && cur.ToolCallID != "" {
			events = append(events, aguievents.NewToolCallArgsEvent(cur.ToolCallID, tc.Args))
		}
	}
	return events
}

func (t *Translator) endMessage(st *runState) []aguievents.Event {
	cur := t.messageInProgress(st.key)
	var events []aguievents.Event
	if cur.TextOpen && cur.ID != "" {
		events = append(events, aguievents.NewTextMessageEndEvent(cur.ID))
	}
	if cur.ToolCallID != "" {
		events = append(events, aguievents.NewToolCallEndEvent(cur.ToolCallID))
	}
	t.clearMessageInProgress(st.key)
	return events
}

// messageInProgress returns a copy of the run's entry; a missing or nil
// entry reads as empty.
func (t *Translator) messageInProgress(key string) MessageInProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	if m := t.messagesInProgress[key]; m != nil {
		return *m
	}
	return MessageInProgress{}
}

// setMessageInProgress merges data into the run's entry. Merging into a nil
// entry is the same as merging into an empty one.
func (t *Translator) setMessageInProgress(key string, data MessageInProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var merged MessageInProgress
	if current := t.messagesInProgress[key]; current != nil {
		merged = *current
	}
	merged.merge(data)
	t.messagesInProgress[key] = &merged
}

// clearMessageInProgress keeps the key with a nil entry once a message ends.
func (t *Translator) clearMessageInProgress(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messagesInProgress[key] = nil
}

func (t *Translator) forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.messagesInProgress, key)
}
