package gateway

// WhatsApp Cloud API webhook payload. Only the fields the engine needs are
// decoded; status callbacks and unsupported message types fall out as
// empty events.

type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Audio struct {
		ID       string `json:"id"`
		MimeType string `json:"mime_type"`
	} `json:"audio"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// inboundEvent is a flattened message ready for processing.
type inboundEvent struct {
	From    string
	ID      string
	Kind    string
	Text    string
	MediaID string
}

// messages flattens the payload into the events worth handling.
func (p *webhookPayload) messages() []inboundEvent {
	var events []inboundEvent
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if ev, ok := flatten(msg); ok {
					events = append(events, ev)
				}
			}
		}
	}
	return events
}

func flatten(msg webhookMessage) (inboundEvent, bool) {
	ev := inboundEvent{From: msg.From, ID: msg.ID, Kind: "text"}
	switch msg.Type {
	case "text":
		ev.Text = msg.Text.Body
	case "audio":
		ev.Kind = "audio"
		ev.MediaID = msg.Audio.ID
	case "interactive":
		switch msg.Interactive.Type {
		case "button_reply":
			ev.Text = msg.Interactive.ButtonReply.Title
		case "list_reply":
			ev.Text = msg.Interactive.ListReply.Title
		default:
			return inboundEvent{}, false
		}
	default:
		return inboundEvent{}, false
	}
	if ev.From == "" {
		return inboundEvent{}, false
	}
	return ev, true
}
