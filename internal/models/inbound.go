package models

// Channel identifies the messaging platform an event came from.
type Channel string

const (
	ChannelMessenger Channel = "MESSENGER"
	ChannelWhatsApp  Channel = "WHATSAPP"
)

// InboundEvent is the canonical shape of one inbound webhook message.
type InboundEvent struct {
	MessageID string
	Channel   Channel
	SenderID  string

	// PhoneNumberID is the WhatsApp business number that received the
	// message; replies are sent from it. Empty for Messenger.
	PhoneNumberID string

	// Exactly one of Text or Audio is set.
	Text  *string
	Audio *AudioRef
}

// AudioRef points at remote audio: a WhatsApp media id or a Messenger
// attachment URL.
type AudioRef struct {
	MediaID  string
	URL      string
	MimeType string
}

// IsAudio reports whether the event carries audio content.
func (e InboundEvent) IsAudio() bool {
	return e.Audio != nil
}
